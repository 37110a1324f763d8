package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

Tools: search_artifacts, identify_artifact, list_contexts, rescan_context.
Stdout carries JSON-RPC only; logs go to the log file.

With --watch every context with a repository is kept in sync while serving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("transport") && loadedConfig != nil {
				transport = loadedConfig.Server.Transport
			}
			return runServe(commandContext(cmd), transport, watch)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Watch every repository-backed context while serving")

	return cmd
}

func runServe(ctx context.Context, transport string, watch bool) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := verifyStdinForMCP(); err != nil {
		// Still serve: some clients attach a pty.
		slog.Warn("stdin_not_piped", slog.String("error", err.Error()))
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	server, err := mcp.NewServer(s.idx, s.cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if watch {
		for _, c := range s.idx.AllIndexingContexts() {
			ic, ok := c.(*index.IndexingContext)
			if !ok || ic.Repository() == "" {
				continue
			}
			g.Go(func() error {
				if err := syncContext(gctx, s, ic, watchOptions{}, nil, nil); err != nil {
					// A failing watcher must not take the server down.
					slog.Error("watch_failed", slog.String("context_id", ic.ID()), slog.String("error", err.Error()))
				}
				return nil
			})
		}
	}
	g.Go(func() error {
		defer cancel()
		err := server.Serve(gctx, transport)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

// verifyStdinForMCP reports when stdin is a terminal, which means no MCP
// client is attached.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return errors.New("stdin is a terminal, not a pipe; serve is meant to be launched by an MCP client")
	}
	return nil
}
