package nexus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/artifactidx/internal/index"
)

// lockRetryDelay is how often a contended rescan lock file is polled.
const lockRetryDelay = 50 * time.Millisecond

// fileLock is a cross-process lock on <dir>/<id>.rescan.lock.
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newFileLock(dir, id string) *fileLock {
	path := filepath.Join(dir, id+".rescan.lock")
	return &fileLock{path: path, flock: flock.New(path)}
}

// Lock blocks until the lock is held or ctx is done.
func (l *fileLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	ok, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire rescan lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("rescan lock %s not acquired", l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call on an unlocked lock.
func (l *fileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release rescan lock: %w", err)
	}
	return nil
}

// lockRescan serializes rescans of one context id within this process and,
// for on-disk contexts, across processes. The returned func releases both.
func (n *Indexer) lockRescan(ctx context.Context, ic *index.IndexingContext) (func(), error) {
	n.locksMu.Lock()
	sem, ok := n.locks[ic.ID()]
	if !ok {
		sem = make(chan struct{}, 1)
		n.locks[ic.ID()] = sem
	}
	n.locksMu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if ic.IndexDir() == "" {
		return func() { <-sem }, nil
	}

	fl := newFileLock(filepath.Dir(ic.IndexDir()), ic.ID())
	if err := fl.Lock(ctx); err != nil {
		<-sem
		return nil, err
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			n.logger.Warn("rescan_unlock_failed",
				slog.String("context_id", ic.ID()),
				slog.String("error", err.Error()))
		}
		<-sem
	}, nil
}
