package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/artifactidx/internal/journal"
	"github.com/Aman-CERP/artifactidx/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit       int
		pruneBefore time.Duration
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "history [context-id]",
		Short: "Show recent rescans",
		Long: `Show the rescan journal, newest first, optionally for one context.

Examples:
  artifactidx history
  artifactidx history central --limit 5
  artifactidx history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contextID := ""
			if len(args) == 1 {
				contextID = args[0]
			}

			cfg := loadedConfig
			j, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return fmt.Errorf("failed to open rescan journal: %w", err)
			}
			defer func() { _ = j.Close() }()

			ctx := commandContext(cmd)
			p := ui.NewPrinter(newUIConfig(cmd))

			if pruneBefore > 0 {
				n, err := j.Prune(ctx, time.Now().Add(-pruneBefore))
				if err != nil {
					return err
				}
				p.Success(fmt.Sprintf("Pruned %d rescans older than %s", n, pruneBefore))
				return nil
			}

			runs, err := j.List(ctx, contextID, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []journal.Run{}
				}
				return p.JSON(runs)
			}
			if len(runs) == 0 {
				p.Dim("No rescans recorded")
				return nil
			}
			return p.Table(ui.RunsTable(runs))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().DurationVar(&pruneBefore, "prune", 0, "Delete finished runs older than this duration instead of listing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
