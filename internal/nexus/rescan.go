package nexus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/scanner"
	"github.com/Aman-CERP/artifactidx/internal/store"
	"github.com/Aman-CERP/artifactidx/pkg/indexer"
)

// RescanRequest configures one rescan.
type RescanRequest struct {
	// FromPath limits the crawl to a subtree of the repository. A full
	// rescan from a subtree drops entries outside it.
	FromPath string
	// Update seeds the staging index with the live contents, so entries
	// whose files disappeared survive.
	Update   bool
	Listener ScanListener
}

// RescanResult summarizes a rescan.
type RescanResult struct {
	ContextID string
	// RunID is the journal id of the run, empty without a journal.
	RunID       string
	Directories int
	Discovered  int
	Indexed     int
	// Errors are per-artifact failures that did not abort the scan.
	Errors   []error
	Duration time.Duration
	// Skipped is set when the context has no repository to scan.
	Skipped bool
}

// RescanContext rescans the registered indexing context with the given id.
func (n *Indexer) RescanContext(ctx context.Context, id string, req RescanRequest) (*RescanResult, error) {
	ic, err := n.IndexingContext(id)
	if err != nil {
		return nil, err
	}
	return n.Rescan(ctx, ic, req)
}

// Rescan rebuilds the context's index from its repository. The new index
// is built in a staging directory and swapped in only on success; on
// failure the live contents are untouched and the cause is returned
// wrapped in a scan error. Contexts without a repository are skipped.
func (n *Indexer) Rescan(ctx context.Context, ic *index.IndexingContext, req RescanRequest) (*RescanResult, error) {
	if ic == nil {
		return nil, indexer.ErrNilContext
	}
	res := &RescanResult{ContextID: ic.ID()}
	if ic.Repository() == "" {
		res.Skipped = true
		return res, nil
	}
	if st, err := os.Stat(ic.Repository()); err != nil || !st.IsDir() {
		return nil, ierrors.RepositoryNotFoundError(ic.Repository())
	}

	unlock, err := n.lockRescan(ctx, ic)
	if err != nil {
		return nil, ierrors.ScanError(ic.ID(), err)
	}
	defer unlock()

	stg, err := n.stage(ic)
	if err != nil {
		return nil, err
	}
	defer stg.cleanup(n.logger)

	listener := req.Listener
	if listener == nil {
		listener = NopListener{}
	}
	res.RunID = n.startRun(ctx, ic, req)

	n.logger.Info("rescan_started",
		slog.String("context_id", ic.ID()),
		slog.Bool("update", req.Update),
		slog.String("from_path", req.FromPath))

	began := time.Now()
	listener.ScanningStarted(ic)
	err = n.build(ctx, ic, stg, req, listener, res)
	res.Duration = time.Since(began)
	listener.ScanningFinished(ic, res)
	n.finishRun(ic, res, err)

	if err != nil {
		n.logger.Error("rescan_failed",
			slog.String("context_id", ic.ID()),
			slog.String("error", err.Error()))
		return nil, ierrors.ScanError(ic.ID(), err)
	}

	n.logger.Info("rescan_complete",
		slog.String("context_id", ic.ID()),
		slog.Int("discovered", res.Discovered),
		slog.Int("indexed", res.Indexed),
		slog.Int("artifact_errors", len(res.Errors)),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// build scans into a staging context and swaps it into ic.
func (n *Indexer) build(ctx context.Context, ic *index.IndexingContext, stg *staging, req RescanRequest, listener ScanListener, res *RescanResult) error {
	cfg := ic.Config()
	cfg.ID = ic.ID() + "-tmp"
	cfg.IndexDir = stg.dir
	cfg.Searchable = false
	cfg.OnIncompatible = store.DiscardAndRecreate
	cfg.Logger = n.logger

	tmp, err := index.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open staging index: %w", err)
	}
	stg.tmp = tmp

	if req.Update {
		if err := ic.Store().CopyInto(ctx, tmp.Store()); err != nil {
			return fmt.Errorf("failed to copy live index: %w", err)
		}
	}

	scanRes, err := n.crawler.Scan(ctx, scanner.Request{
		Root:     ic.Repository(),
		FromPath: req.FromPath,
		Exclude:  n.exclude,
		Visit: func(vctx context.Context, ac *artifact.Context) error {
			res.Discovered++
			listener.ArtifactDiscovered(ac)
			if err := n.engine.Index(vctx, tmp, ac); err != nil {
				if ierrors.GetCode(err) != ierrors.ErrCodeInvalidInput {
					return err
				}
				ac.AddError(err)
			} else {
				res.Indexed++
			}
			for _, aerr := range ac.Errors {
				listener.ArtifactError(ac, aerr)
				res.Errors = append(res.Errors, aerr)
			}
			return nil
		},
	})
	if scanRes != nil {
		res.Directories = scanRes.Directories
	}
	if err != nil {
		return err
	}

	if err := tmp.UpdateTimestamp(true); err != nil {
		return fmt.Errorf("failed to stamp staging index: %w", err)
	}
	if err := ic.Replace(ctx, tmp); err != nil {
		return err
	}

	n.logger.Debug("rescan_swapped",
		slog.String("context_id", ic.ID()),
		slog.String("generation", ic.Store().Generation()))
	return nil
}

// staging is the temporary area of one rescan: a marker file reserving a
// unique name next to the live index and the directory derived from it.
// In-memory contexts stage in memory and have neither.
type staging struct {
	marker string
	dir    string
	tmp    *index.IndexingContext
}

func (n *Indexer) stage(ic *index.IndexingContext) (*staging, error) {
	if ic.IndexDir() == "" {
		return &staging{}, nil
	}

	parent := filepath.Dir(ic.IndexDir())
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, ierrors.StagingError(parent, err)
	}
	f, err := os.CreateTemp(parent, ic.ID()+"-tmp*")
	if err != nil {
		return nil, ierrors.StagingError(parent, err)
	}
	marker := f.Name()
	_ = f.Close()

	dir := marker + ".dir"
	if err := os.Mkdir(dir, 0o755); err != nil {
		_ = os.Remove(marker)
		return nil, ierrors.StagingError(dir, err)
	}
	return &staging{marker: marker, dir: dir}, nil
}

// cleanup closes the staging context and deletes the staging files.
// Failures are logged, never returned.
func (s *staging) cleanup(logger *slog.Logger) {
	warn := func(what string, err error) {
		logger.Warn("staging_cleanup_failed",
			slog.String("target", what),
			slog.String("error", err.Error()))
	}
	if s.tmp != nil {
		if err := s.tmp.Close(true); err != nil {
			warn(s.tmp.ID(), err)
		}
	}
	if s.dir != "" {
		if err := os.RemoveAll(s.dir); err != nil {
			warn(s.dir, err)
		}
	}
	if s.marker != "" {
		if err := os.Remove(s.marker); err != nil && !os.IsNotExist(err) {
			warn(s.marker, err)
		}
	}
}

func (n *Indexer) startRun(ctx context.Context, ic *index.IndexingContext, req RescanRequest) string {
	if n.journal == nil {
		return ""
	}
	run, err := n.journal.Start(ctx, ic.ID(), req.Update, req.FromPath)
	if err != nil {
		n.logger.Warn("journal_write_failed",
			slog.String("context_id", ic.ID()),
			slog.String("error", err.Error()))
		return ""
	}
	return run.ID
}

func (n *Indexer) finishRun(ic *index.IndexingContext, res *RescanResult, runErr error) {
	if n.journal == nil || res.RunID == "" {
		return
	}
	// The run is recorded even when the rescan was cancelled.
	if err := n.journal.Finish(context.Background(), res.RunID, res.Indexed, runErr); err != nil {
		n.logger.Warn("journal_write_failed",
			slog.String("context_id", ic.ID()),
			slog.String("error", err.Error()))
	}
}
