// Package watcher keeps an indexing context in sync with its repository
// between rescans.
//
// A [RepositoryWatcher] reports debounced batches of file changes, using
// fsnotify where available and polling otherwise. A [Syncer] turns each
// batch into artifact additions and deletions with one commit per batch.
// Changes it cannot map to single artifacts, such as a deleted version
// directory, trigger an update rescan instead.
//
// Usage:
//
//	w, err := watcher.New(watcher.Options{Exclude: cfg.Scan.Exclude})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, ic.Repository()) }()
//
//	syncer := watcher.NewSyncer(idx, ic, rescan, logger)
//	for batch := range w.Events() {
//	    if _, err := syncer.Apply(ctx, batch); err != nil {
//	        logger.Warn("sync_failed", slog.String("error", err.Error()))
//	    }
//	}
package watcher
