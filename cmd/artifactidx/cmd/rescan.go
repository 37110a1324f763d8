package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/nexus"
	"github.com/Aman-CERP/artifactidx/internal/ui"
)

// rescanOptions holds CLI flags for rescan.
type rescanOptions struct {
	all      bool
	update   bool
	fromPath string
	retries  int
}

func newRescanCmd() *cobra.Command {
	var opts rescanOptions

	cmd := &cobra.Command{
		Use:   "rescan [context-id...]",
		Short: "Rebuild context indexes from their repositories",
		Long: `Rebuild the index of one or more contexts from their repositories.

The new index is built in a staging directory and swapped in only when the
scan succeeds; a failed rescan leaves the previous index untouched.
Contexts without a repository are skipped.

Examples:
  artifactidx rescan central
  artifactidx rescan --all
  artifactidx rescan central --update --from org/apache
  artifactidx rescan central --retries 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !opts.all {
				return ierrors.New(ierrors.ErrCodeInvalidInput, "no context given", nil).
					WithSuggestion("Pass context ids or --all")
			}
			return runRescan(commandContext(cmd), cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Rescan every indexing context")
	cmd.Flags().BoolVar(&opts.update, "update", false, "Keep entries whose files disappeared")
	cmd.Flags().StringVar(&opts.fromPath, "from", "", "Only crawl this subtree of the repository")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "Retry failed rescans up to N times with backoff")

	return cmd
}

func runRescan(ctx context.Context, cmd *cobra.Command, ids []string, opts rescanOptions) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	targets, err := rescanTargets(s.idx, ids, opts.all)
	if err != nil {
		return err
	}

	renderer := ui.NewRenderer(newUIConfig(cmd))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}

	retryCfg := ierrors.DefaultRetryConfig()
	retryCfg.MaxRetries = max(opts.retries, 0)
	retryCfg.ShouldRetry = func(err error) bool {
		return ierrors.IsRetryable(err) || errors.Is(err, ierrors.ErrScan)
	}

	began := time.Now()
	stats := ui.CompletionStats{Contexts: len(targets)}
	var failures []error
	for i, ic := range targets {
		listener := &progressListener{renderer: renderer, position: i + 1, total: len(targets)}
		res, err := ierrors.RetryWithResult(ctx, retryCfg, func() (*nexus.RescanResult, error) {
			return s.idx.Rescan(ctx, ic, nexus.RescanRequest{
				FromPath: opts.fromPath,
				Update:   opts.update,
				Listener: listener,
			})
		})
		if err != nil {
			stats.Failed++
			failures = append(failures, err)
			renderer.AddError(ui.ErrorEvent{Context: ic.ID(), Err: err})
			slog.Error("rescan_command_failed",
				slog.String("context_id", ic.ID()),
				slog.String("error", err.Error()))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if res.Skipped {
			stats.Skipped++
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:        ui.StageScanning,
				Context:      ic.ID(),
				ContextIndex: i + 1,
				ContextTotal: len(targets),
				Message:      "skipped, no repository",
			})
			continue
		}
		stats.Discovered += res.Discovered
		stats.Indexed += res.Indexed
		stats.Errors += len(res.Errors)
	}
	stats.Duration = time.Since(began)

	renderer.Complete(stats)
	if err := renderer.Stop(); err != nil {
		slog.Warn("progress_display_stop_failed", slog.String("error", err.Error()))
	}

	if len(failures) == 1 {
		return failures[0]
	}
	return errors.Join(failures...)
}

// rescanTargets resolves ids to indexing contexts, or every indexing
// context when all is set.
func rescanTargets(idx *nexus.Indexer, ids []string, all bool) ([]*index.IndexingContext, error) {
	if all {
		var out []*index.IndexingContext
		for _, c := range idx.AllIndexingContexts() {
			if ic, ok := c.(*index.IndexingContext); ok {
				out = append(out, ic)
			}
		}
		return out, nil
	}
	out := make([]*index.IndexingContext, 0, len(ids))
	for _, id := range ids {
		ic, err := idx.IndexingContext(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ic)
	}
	return out, nil
}

// progressListener forwards scan events of one context to a renderer.
type progressListener struct {
	renderer   ui.Renderer
	position   int
	total      int
	contextID  string
	discovered int
}

func (l *progressListener) event() ui.ProgressEvent {
	return ui.ProgressEvent{
		Stage:        ui.StageScanning,
		Context:      l.contextID,
		ContextIndex: l.position,
		ContextTotal: l.total,
	}
}

func (l *progressListener) ScanningStarted(ic *index.IndexingContext) {
	l.contextID = ic.ID()
	l.discovered = 0
	l.renderer.UpdateProgress(l.event())
}

func (l *progressListener) ArtifactDiscovered(ac *artifact.Context) {
	l.discovered++
	ev := l.event()
	ev.Discovered = l.discovered
	ev.Indexed = l.discovered
	ev.Current = ac.Coordinates.String()
	l.renderer.UpdateProgress(ev)
}

func (l *progressListener) ArtifactError(ac *artifact.Context, err error) {
	name := ac.Artifact
	if name == "" {
		name = ac.POM
	}
	l.renderer.AddError(ui.ErrorEvent{Context: l.contextID, Artifact: name, Err: err, IsWarn: true})
}

func (l *progressListener) ScanningFinished(_ *index.IndexingContext, res *nexus.RescanResult) {
	ev := l.event()
	ev.Discovered = res.Discovered
	ev.Indexed = res.Indexed
	ev.Message = fmt.Sprintf("%d of %d artifacts indexed in %s",
		res.Indexed, res.Discovered, res.Duration.Round(time.Millisecond))
	l.renderer.UpdateProgress(ev)
}

var _ nexus.ScanListener = (*progressListener)(nil)
