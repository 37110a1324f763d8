package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/store"
)

// DescriptorFormat is the index format version written into descriptors.
const DescriptorFormat = "1"

// Config describes an indexing context.
type Config struct {
	ID           string
	RepositoryID string
	// Repository is the local repository root. Empty means not scannable.
	Repository string
	// IndexDir holds the index. Empty keeps the index in memory.
	IndexDir       string
	RepositoryURL  string
	IndexUpdateURL string
	// Creators are applied in order. Nil means the default creators.
	Creators   []artifact.Creator
	Searchable bool
	// OnIncompatible decides what happens to an existing index that
	// belongs to another repository, another format, or is corrupt.
	OnIncompatible store.Policy
	Logger         *slog.Logger
}

// IndexingContext is one named index bound to a repository and its creators.
type IndexingContext struct {
	cfg        Config
	store      *store.Store
	searchable atomic.Bool
	logger     *slog.Logger

	closeMu sync.Mutex
	closed  bool
	deleted bool
}

// New opens or creates the context's index.
func New(cfg Config) (*IndexingContext, error) {
	if cfg.ID == "" {
		return nil, ierrors.ValidationError("context id is required", nil)
	}
	if cfg.RepositoryID == "" {
		cfg.RepositoryID = cfg.ID
	}
	if cfg.Creators == nil {
		cfg.Creators = artifact.DefaultCreators()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	repositoryID := cfg.RepositoryID
	st, err := store.Open(store.Options{
		Path:   cfg.IndexDir,
		Schema: artifact.Schema(cfg.Creators),
		Descriptor: &store.Descriptor{
			Format:       DescriptorFormat,
			RepositoryID: repositoryID,
		},
		Check: func(d *store.Descriptor) error {
			switch {
			case d == nil:
				return errors.New("index has no descriptor")
			case d.Format != DescriptorFormat:
				return fmt.Errorf("index format %q, want %q", d.Format, DescriptorFormat)
			case d.RepositoryID != repositoryID:
				return fmt.Errorf("index belongs to repository %q, not %q", d.RepositoryID, repositoryID)
			}
			return nil
		},
		OnIncompatible: cfg.OnIncompatible,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	c := &IndexingContext{
		cfg:    cfg,
		store:  st,
		logger: cfg.Logger.With(slog.String("context_id", cfg.ID)),
	}
	c.searchable.Store(cfg.Searchable)
	return c, nil
}

// ID implements Context.
func (c *IndexingContext) ID() string { return c.cfg.ID }

// RepositoryID implements Context.
func (c *IndexingContext) RepositoryID() string { return c.cfg.RepositoryID }

// Repository implements Context.
func (c *IndexingContext) Repository() string { return c.cfg.Repository }

// IndexDir returns the index directory, empty for in-memory contexts.
func (c *IndexingContext) IndexDir() string { return c.cfg.IndexDir }

// Creators returns the metadata creators in application order.
func (c *IndexingContext) Creators() []artifact.Creator { return c.cfg.Creators }

// Config returns a copy of the context's configuration.
func (c *IndexingContext) Config() Config {
	cfg := c.cfg
	cfg.Creators = append([]artifact.Creator(nil), c.cfg.Creators...)
	return cfg
}

// Store returns the backing index store.
func (c *IndexingContext) Store() *store.Store { return c.store }

// Searchable implements Context.
func (c *IndexingContext) Searchable() bool { return c.searchable.Load() }

// SetSearchable toggles whether search-all includes the context.
func (c *IndexingContext) SetSearchable(v bool) { c.searchable.Store(v) }

// Members implements Context.
func (c *IndexingContext) Members() []Context { return nil }

// Commit implements Context.
func (c *IndexingContext) Commit() error {
	if err := c.store.Commit(); err != nil {
		return ierrors.New(ierrors.ErrCodeIndexFailed, fmt.Sprintf("commit of context %s failed", c.cfg.ID), err)
	}
	return nil
}

// Timestamp returns the committed index timestamp, zero when never stamped.
func (c *IndexingContext) Timestamp() (time.Time, error) {
	d, err := c.store.Descriptor()
	if err != nil || d == nil {
		return time.Time{}, err
	}
	return d.Timestamp, nil
}

// UpdateTimestamp stamps the index with the current time, committing when asked.
func (c *IndexingContext) UpdateTimestamp(commit bool) error {
	err := c.store.SetDescriptor(store.Descriptor{
		Format:       DescriptorFormat,
		RepositoryID: c.cfg.RepositoryID,
		Timestamp:    time.Now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		return err
	}
	if commit {
		return c.Commit()
	}
	return nil
}

// Replace swaps in the committed contents of src. src is spent afterwards.
func (c *IndexingContext) Replace(ctx context.Context, src *IndexingContext) error {
	if err := c.store.ReplaceFrom(ctx, src.store); err != nil {
		return fmt.Errorf("replace of context %s failed: %w", c.cfg.ID, err)
	}
	c.logger.Debug("context_replaced", slog.String("generation", c.store.Generation()))
	return nil
}

// Acquire implements Context.
func (c *IndexingContext) Acquire() ([]*Searcher, error) {
	r, err := c.store.Acquire()
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", c.cfg.ID, err)
	}
	return []*Searcher{{Context: c, Reader: r}}, nil
}

// Close implements Context. A later call with deleteFiles still removes
// the files of an already closed context.
func (c *IndexingContext) Close(deleteFiles bool) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if deleteFiles && !c.deleted {
		c.closed, c.deleted = true, true
		return c.store.Remove()
	}
	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}

// Describe implements Context.
func (c *IndexingContext) Describe() Description {
	d := Description{
		ID:             c.cfg.ID,
		RepositoryID:   c.cfg.RepositoryID,
		Repository:     c.cfg.Repository,
		IndexDir:       c.cfg.IndexDir,
		RepositoryURL:  c.cfg.RepositoryURL,
		IndexUpdateURL: c.cfg.IndexUpdateURL,
		Searchable:     c.Searchable(),
	}
	for _, cr := range c.cfg.Creators {
		d.Creators = append(d.Creators, cr.ID())
	}
	if ts, err := c.Timestamp(); err == nil {
		d.Timestamp = ts
	}
	if n, err := c.store.DocCount(); err == nil {
		d.Documents = n
	}
	return d
}
