package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/artifactidx/internal/gitignore"
	"github.com/Aman-CERP/artifactidx/internal/scanner"
)

// RepositoryWatcher watches a repository tree with fsnotify, falling back
// to polling when fsnotify cannot be initialized.
type RepositoryWatcher struct {
	fsWatcher      *fsnotify.Watcher
	pollWatcher    *PollingWatcher
	useFsnotify    bool
	debouncer      *Debouncer
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	rootPath       string
	opts           Options
	logger         *slog.Logger
	mu             sync.RWMutex
	stopped        bool
	dirsMu         sync.Mutex
	dirs           map[string]struct{}
	exclude        *gitignore.Matcher
	droppedBatches atomic.Uint64
}

// New creates a repository watcher with the given options.
func New(opts Options) (*RepositoryWatcher, error) {
	return NewWithLogger(opts, nil)
}

// NewWithLogger is New with an explicit logger.
func NewWithLogger(opts Options, logger *slog.Logger) (*RepositoryWatcher, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	w := &RepositoryWatcher{
		debouncer: NewDebouncer(opts.Debounce, logger),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
		logger:    logger,
		dirs:      make(map[string]struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
			w.useFsnotify = true
		} else {
			logger.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		}
	}
	if !w.useFsnotify {
		w.pollWatcher = NewPollingWatcher(opts.PollInterval, opts.Exclude, logger)
	}
	return w, nil
}

// Start watches path until ctx is done or Stop is called.
func (w *RepositoryWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	if st, err := os.Stat(absPath); err != nil || !st.IsDir() {
		return fmt.Errorf("repository %s is not a directory", absPath)
	}
	exclude, err := scanner.NewExcluder(absPath, w.opts.Exclude)
	if err != nil {
		w.logger.Warn("ignore_file_unreadable", slog.String("root", absPath), slog.String("error", err.Error()))
	}
	w.mu.Lock()
	w.rootPath = absPath
	w.exclude = exclude
	w.mu.Unlock()

	go w.forwardDebouncedEvents(ctx)

	if w.useFsnotify {
		return w.startFsnotify(ctx)
	}
	return w.startPolling(ctx)
}

func (w *RepositoryWatcher) startFsnotify(ctx context.Context) error {
	if err := w.addRecursive(w.rootPath); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *RepositoryWatcher) startPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.pollWatcher.Events():
				if !ok {
					return
				}
				w.debouncer.Add(event)
			case err, ok := <-w.pollWatcher.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()

	return w.pollWatcher.Start(ctx, w.rootPath)
}

func (w *RepositoryWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}
	if w.shouldIgnore(rel, isDir) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			// Files may land before the watch is added.
			w.addCreatedDir(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      rel,
		Operation: op,
		IsDir:     isDir || w.wasWatchedDir(event.Name, op),
		Timestamp: time.Now(),
	})
}

// watchDir adds a directory watch and remembers it, so a later removal
// can still be reported as a directory.
func (w *RepositoryWatcher) watchDir(path string) error {
	if err := w.fsWatcher.Add(path); err != nil {
		return err
	}
	w.dirsMu.Lock()
	w.dirs[path] = struct{}{}
	w.dirsMu.Unlock()
	return nil
}

// wasWatchedDir reports whether a removed path was a watched directory.
func (w *RepositoryWatcher) wasWatchedDir(path string, op Operation) bool {
	if op != OpDelete && op != OpRename {
		return false
	}
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()
	if _, ok := w.dirs[path]; !ok {
		return false
	}
	prefix := path + string(filepath.Separator)
	for d := range w.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
	return true
}

// addCreatedDir watches a new directory tree and reports the files already in it.
func (w *RepositoryWatcher) addCreatedDir(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(w.rootPath, path)
		if err != nil {
			return nil
		}
		if w.shouldIgnore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			_ = w.watchDir(path)
			return nil
		}
		w.debouncer.Add(FileEvent{Path: rel, Operation: OpCreate, Timestamp: time.Now()})
		return nil
	})
}

func (w *RepositoryWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			w.emitEvents(events)
		}
	}
}

func (w *RepositoryWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.rootPath, path)
		if rel != "." && w.shouldIgnore(rel, true) {
			return filepath.SkipDir
		}
		return w.watchDir(path)
	})
}

// shouldIgnore skips hidden entries and configured exclusions.
func (w *RepositoryWatcher) shouldIgnore(rel string, isDir bool) bool {
	if rel == "." || rel == "" {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	w.mu.RLock()
	exclude := w.exclude
	w.mu.RUnlock()
	return exclude.Match(rel, isDir)
}

func (w *RepositoryWatcher) emitEvents(events []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}

	select {
	case w.events <- events:
	default:
		count := w.droppedBatches.Add(1)
		w.logger.Warn("event_buffer_full",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count))
	}
}

// DroppedBatches returns the number of batches dropped because the consumer fell behind.
func (w *RepositoryWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

func (w *RepositoryWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes its channels. Safe to call twice.
func (w *RepositoryWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.pollWatcher != nil {
		_ = w.pollWatcher.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced batches.
func (w *RepositoryWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of watch errors.
func (w *RepositoryWatcher) Errors() <-chan error {
	return w.errors
}

// WatcherType returns "fsnotify" or "polling".
func (w *RepositoryWatcher) WatcherType() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// RootPath returns the absolute repository path being watched.
func (w *RepositoryWatcher) RootPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rootPath
}
