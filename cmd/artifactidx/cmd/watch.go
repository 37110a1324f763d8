package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/nexus"
	"github.com/Aman-CERP/artifactidx/internal/ui"
	"github.com/Aman-CERP/artifactidx/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	polling      bool
	pollInterval time.Duration
	initial      bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <context-id>",
		Short: "Keep a context in sync with its repository",
		Long: `Watch the repository of a context and index artifacts as files change.

Changes are debounced (watch.debounce) and applied with one commit per
batch. Removing a directory triggers an update rescan. Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(commandContext(cmd), cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.polling, "polling", false, "Poll the repository instead of using file system notifications")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", watcher.DefaultOptions().PollInterval, "Polling interval with --polling")
	cmd.Flags().BoolVar(&opts.initial, "rescan", false, "Run an update rescan before watching")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, id string, opts watchOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ic, err := s.idx.IndexingContext(id)
	if err != nil {
		return err
	}
	if ic.Repository() == "" {
		return ierrors.New(ierrors.ErrCodeInvalidInput, fmt.Sprintf("context %s has no repository to watch", id), nil)
	}

	p := ui.NewPrinter(newUIConfig(cmd))
	return syncContext(ctx, s, ic, opts, func(kind string) {
		p.Heading(fmt.Sprintf("Watching %s (%s)", ic.Repository(), kind))
		p.Dim("Press Ctrl+C to stop")
	}, func(res watcher.SyncResult, err error) {
		stamp := time.Now().Format("15:04:05")
		switch {
		case err != nil:
			p.Warn(fmt.Sprintf("%s: sync failed: %v", stamp, err))
		case res.Rescanned:
			p.Success(fmt.Sprintf("%s: rescanned after directory removal", stamp))
		case res.Added > 0 || res.Deleted > 0:
			p.Success(fmt.Sprintf("%s: %d indexed, %d removed", stamp, res.Added, res.Deleted))
		}
	})
}

// syncContext watches the repository of ic and applies each debounced
// batch until ctx is done. started is called once the watcher is created.
func syncContext(ctx context.Context, s *session, ic *index.IndexingContext, opts watchOptions,
	started func(kind string), report func(watcher.SyncResult, error)) error {
	logger := slog.Default().With(slog.String("context_id", ic.ID()))

	debounce, err := s.cfg.WatchDebounce()
	if err != nil {
		return err
	}
	rescan := func(ctx context.Context) error {
		_, err := s.idx.Rescan(ctx, ic, nexus.RescanRequest{Update: true})
		return err
	}
	if opts.initial {
		if err := rescan(ctx); err != nil {
			return err
		}
	}

	w, err := watcher.NewWithLogger(watcher.Options{
		Debounce:     debounce,
		PollInterval: opts.pollInterval,
		Exclude:      s.cfg.Scan.Exclude,
		ForcePolling: opts.polling,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, ic.Repository()) }()

	if started != nil {
		started(w.WatcherType())
	}
	logger.Info("watch_started", slog.String("repository", ic.Repository()), slog.String("watcher", w.WatcherType()))

	syncer := watcher.NewSyncer(s.idx, ic, rescan, logger)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-startErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			logger.Warn("watch_error", slog.String("error", err.Error()))
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			res, err := syncer.Apply(ctx, batch)
			if err != nil {
				logger.Warn("sync_failed", slog.String("error", err.Error()))
			}
			if report != nil {
				report(res, err)
			}
		}
	}
}
