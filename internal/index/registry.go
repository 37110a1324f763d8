package index

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
)

// Registry maps context ids to contexts. It is safe for concurrent use;
// no lock is held while a context is closed.
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]Context
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]Context)}
}

// Add registers c, failing if its id is taken.
func (r *Registry) Add(c Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contexts[c.ID()]; ok {
		return ierrors.DuplicateIDError(c.ID())
	}
	r.contexts[c.ID()] = c
	return nil
}

// Put registers c, replacing and returning any context with the same id.
// The replaced context is not closed.
func (r *Registry) Put(c Context) Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.contexts[c.ID()]
	r.contexts[c.ID()] = c
	return prev
}

// Remove unregisters the context and then closes it. It reports whether
// the id was registered.
func (r *Registry) Remove(id string, deleteFiles bool) (bool, error) {
	r.mu.Lock()
	c, ok := r.contexts[id]
	delete(r.contexts, id)
	r.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, c.Close(deleteFiles)
}

// Get looks up a context by id.
func (r *Registry) Get(id string) (Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contexts[id]
	return c, ok
}

// All returns a snapshot of registered contexts ordered by id.
func (r *Registry) All() []Context {
	r.mu.RLock()
	out := make([]Context, 0, len(r.contexts))
	for _, c := range r.contexts {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// IndexingContexts returns the snapshot restricted to contexts owning storage.
func (r *Registry) IndexingContexts() []Context {
	var out []Context
	for _, c := range r.All() {
		if _, ok := c.(*IndexingContext); ok {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of registered contexts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contexts)
}

// Close unregisters and closes every context. Files are kept.
func (r *Registry) Close() error {
	r.mu.Lock()
	all := r.contexts
	r.contexts = make(map[string]Context)
	r.mu.Unlock()

	var errs []error
	for id, c := range all {
		if err := c.Close(false); err != nil {
			slog.Warn("context_close_failed", slog.String("context_id", id), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
