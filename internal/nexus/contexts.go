package nexus

import (
	"log/slog"

	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/store"
)

// AddContext opens an indexing context and registers it. An existing index
// that is incompatible with cfg fails the call.
func (n *Indexer) AddContext(cfg index.Config) (*index.IndexingContext, error) {
	cfg.OnIncompatible = store.Fail
	return n.addContext(cfg)
}

// AddContextForced is AddContext, except an incompatible or corrupt
// existing index is discarded and the context starts empty.
func (n *Indexer) AddContextForced(cfg index.Config) (*index.IndexingContext, error) {
	cfg.OnIncompatible = store.DiscardAndRecreate
	return n.addContext(cfg)
}

func (n *Indexer) addContext(cfg index.Config) (*index.IndexingContext, error) {
	if _, ok := n.registry.Get(cfg.ID); ok {
		return nil, ierrors.DuplicateIDError(cfg.ID)
	}
	if cfg.Logger == nil {
		cfg.Logger = n.logger
	}

	ic, err := index.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := n.registry.Add(ic); err != nil {
		// Lost a race with a concurrent add of the same id.
		_ = ic.Close(false)
		return nil, err
	}

	n.logger.Info("context_added",
		slog.String("context_id", ic.ID()),
		slog.String("repository", ic.Repository()),
		slog.String("index_dir", ic.IndexDir()))
	return ic, nil
}

// AddMergedContext registers a merged context reading through members.
func (n *Indexer) AddMergedContext(cfg index.MergedConfig) (*index.MergedContext, error) {
	mc, err := index.NewMerged(cfg)
	if err != nil {
		return nil, err
	}
	if err := n.registry.Add(mc); err != nil {
		return nil, err
	}
	n.logger.Info("merged_context_added", slog.String("context_id", mc.ID()))
	return mc, nil
}

// ReplaceContext registers c, closing any context it displaces. The
// displaced context's files are kept.
func (n *Indexer) ReplaceContext(c index.Context) error {
	prev := n.registry.Put(c)
	if prev == nil || prev == c {
		return nil
	}
	return prev.Close(false)
}

// RemoveContext unregisters a context and closes it, deleting its files
// when asked. Unknown ids are ignored.
func (n *Indexer) RemoveContext(id string, deleteFiles bool) error {
	removed, err := n.registry.Remove(id, deleteFiles)
	if removed {
		n.locksMu.Lock()
		delete(n.locks, id)
		n.locksMu.Unlock()
		n.logger.Info("context_removed",
			slog.String("context_id", id),
			slog.Bool("files_deleted", deleteFiles))
	}
	return err
}

// Contexts returns a snapshot of the registered contexts ordered by id.
func (n *Indexer) Contexts() []index.Context {
	return n.registry.All()
}

// Context looks up a registered context.
func (n *Indexer) Context(id string) (index.Context, error) {
	c, ok := n.registry.Get(id)
	if !ok {
		return nil, ierrors.ContextNotFoundError(id)
	}
	return c, nil
}

// IndexingContext looks up a registered context that owns storage.
func (n *Indexer) IndexingContext(id string) (*index.IndexingContext, error) {
	c, err := n.Context(id)
	if err != nil {
		return nil, err
	}
	ic, ok := c.(*index.IndexingContext)
	if !ok {
		return nil, ierrors.UnsupportedError("indexing", "merged context "+id)
	}
	return ic, nil
}

// AllIndexingContexts returns every registered context that owns storage.
// It is the member provider of dynamic merged contexts.
func (n *Indexer) AllIndexingContexts() []index.Context {
	return n.registry.IndexingContexts()
}
