package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/scanner"
)

// Target applies artifact changes to a context. *nexus.Indexer satisfies it.
type Target interface {
	AddArtifacts(ctx context.Context, c index.Context, acs []*artifact.Context) error
	DeleteArtifacts(ctx context.Context, c index.Context, acs []*artifact.Context) error
}

// RescanFunc runs an update rescan of the synced context.
type RescanFunc func(ctx context.Context) error

// SyncResult summarizes one applied batch.
type SyncResult struct {
	Added     int
	Deleted   int
	Ignored   int
	Rescanned bool
}

// Syncer maps debounced file events onto artifact additions and deletions.
type Syncer struct {
	target Target
	ic     index.Context
	root   string
	rescan RescanFunc
	logger *slog.Logger
}

// NewSyncer creates a syncer for the repository of ic. rescan may be nil,
// in which case directory removals are ignored.
func NewSyncer(target Target, ic index.Context, rescan RescanFunc, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		target: target,
		ic:     ic,
		root:   ic.Repository(),
		rescan: rescan,
		logger: logger,
	}
}

// Apply indexes one batch. Each touched artifact is re-read from disk, so
// a sidecar or pom change refreshes the artifact it belongs to. Removing a
// directory triggers a rescan instead of per-file deletes.
func (s *Syncer) Apply(ctx context.Context, batch []FileEvent) (SyncResult, error) {
	var res SyncResult
	if s.root == "" {
		return res, fmt.Errorf("context %s has no repository", s.ic.ID())
	}

	seen := make(map[string]bool)
	var adds, deletes []*artifact.Context
	for _, ev := range batch {
		if ev.IsDir {
			if ev.Operation == OpDelete || ev.Operation == OpRename {
				res.Rescanned = true
			}
			continue
		}
		ac, ok := scanner.ArtifactAt(s.root, filepath.Join(s.root, ev.Path))
		if !ok {
			res.Ignored++
			continue
		}
		uinfo := ac.Coordinates.UInfo()
		if seen[uinfo] {
			continue
		}
		seen[uinfo] = true

		if primaryExists(ac) {
			adds = append(adds, ac)
		} else {
			deletes = append(deletes, ac)
		}
	}

	var errs []error
	if len(deletes) > 0 {
		if err := s.target.DeleteArtifacts(ctx, s.ic, deletes); err != nil {
			errs = append(errs, fmt.Errorf("delete artifacts: %w", err))
		} else {
			res.Deleted = len(deletes)
		}
	}
	if len(adds) > 0 {
		if err := s.target.AddArtifacts(ctx, s.ic, adds); err != nil {
			errs = append(errs, fmt.Errorf("add artifacts: %w", err))
		} else {
			res.Added = len(adds)
		}
	}

	if res.Rescanned && s.rescan != nil {
		if err := s.rescan(ctx); err != nil {
			errs = append(errs, fmt.Errorf("rescan: %w", err))
		}
	} else {
		res.Rescanned = false
	}

	s.logger.Debug("batch_synced",
		slog.String("context", s.ic.ID()),
		slog.Int("events", len(batch)),
		slog.Int("added", res.Added),
		slog.Int("deleted", res.Deleted),
		slog.Bool("rescanned", res.Rescanned))
	return res, errors.Join(errs...)
}

// primaryExists reports whether the file that defines the artifact is still present.
func primaryExists(ac *artifact.Context) bool {
	path := ac.Artifact
	if path == "" {
		path = ac.POM
	}
	_, err := os.Stat(path)
	return err == nil
}
