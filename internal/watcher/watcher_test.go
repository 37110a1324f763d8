package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{Debounce: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, opts.Debounce)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 100, opts.EventBufferSize)
}

// startWatcher runs w on root and waits until it has had time to register watches.
func startWatcher(t *testing.T, w *RepositoryWatcher, root string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(ctx, root); err != nil && !errors.Is(err, context.Canceled) {
			t.Logf("watcher stopped: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
		<-done
	})
	time.Sleep(150 * time.Millisecond)
}

// collectPaths drains batches until want is seen or the timeout passes.
func collectPaths(t *testing.T, w *RepositoryWatcher, want string, timeout time.Duration) map[string]FileEvent {
	t.Helper()
	seen := map[string]FileEvent{}
	deadline := time.After(timeout)
	for {
		select {
		case batch, ok := <-w.Events():
			if !ok {
				return seen
			}
			for _, e := range batch {
				seen[filepath.ToSlash(e.Path)] = e
			}
			if _, ok := seen[want]; ok {
				return seen
			}
		case <-deadline:
			return seen
		}
	}
}

func TestRepositoryWatcher_ReportsArtifactFiles(t *testing.T) {
	for _, polling := range []bool{false, true} {
		name := "fsnotify"
		if polling {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			// Given: a watched repository with one version directory
			root := t.TempDir()
			dir := filepath.Join(root, "org", "x", "a", "1")
			require.NoError(t, os.MkdirAll(dir, 0o755))

			w, err := New(Options{
				Debounce:     20 * time.Millisecond,
				PollInterval: 50 * time.Millisecond,
				ForcePolling: polling,
			})
			require.NoError(t, err)
			if polling {
				assert.Equal(t, "polling", w.WatcherType())
			}
			startWatcher(t, w, root)

			// When: an artifact file is written
			require.NoError(t, os.WriteFile(filepath.Join(dir, "a-1.jar"), []byte("jar"), 0o644))

			// Then: a batch carries it with a repository-relative path
			seen := collectPaths(t, w, "org/x/a/1/a-1.jar", 3*time.Second)
			require.Contains(t, seen, "org/x/a/1/a-1.jar")
			assert.False(t, seen["org/x/a/1/a-1.jar"].IsDir)
			assert.Equal(t, root, w.RootPath())
		})
	}
}

func TestRepositoryWatcher_SkipsHiddenAndExcluded(t *testing.T) {
	// Given: a watcher excluding *.tmp files
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".index"), 0o755))

	w, err := New(Options{Debounce: 20 * time.Millisecond, Exclude: []string{"*.tmp"}})
	require.NoError(t, err)
	startWatcher(t, w, root)

	// When: hidden, excluded and regular files are written
	require.NoError(t, os.WriteFile(filepath.Join(root, ".index", "seg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "upload.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "marker"), []byte("x"), 0o644))

	// Then: only the regular file is reported
	seen := collectPaths(t, w, "marker", 3*time.Second)
	assert.Contains(t, seen, "marker")
	assert.NotContains(t, seen, ".index/seg")
	assert.NotContains(t, seen, "upload.tmp")
}

func TestRepositoryWatcher_StartOnMissingDirectory(t *testing.T) {
	w, err := New(Options{})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestRepositoryWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(Options{})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}
