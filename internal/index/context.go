// Package index defines indexing contexts, merged contexts, and the
// registry that tracks which indexes currently exist.
package index

import (
	"time"

	"github.com/Aman-CERP/artifactidx/internal/store"
)

// Context is a named, searchable index. It is either an *IndexingContext
// owning storage or a *MergedContext reading through its members.
type Context interface {
	ID() string
	RepositoryID() string
	// Repository is the local repository root, empty when not scannable.
	Repository() string
	Searchable() bool
	Describe() Description
	// Commit publishes buffered changes. Merged contexts reject it.
	Commit() error
	// Close releases storage, optionally deleting index files. Safe to call twice.
	Close(deleteFiles bool) error
	// Members lists the contexts a merged context reads through; nil otherwise.
	Members() []Context
	// Acquire pins the committed contents of every backing index.
	Acquire() ([]*Searcher, error)
}

// Searcher pins one indexing context's committed contents for reading.
type Searcher struct {
	Context *IndexingContext
	Reader  *store.Reader
}

// Release unpins the contents. Safe to call more than once.
func (s *Searcher) Release() {
	s.Reader.Release()
}

// ReleaseAll releases every searcher.
func ReleaseAll(searchers []*Searcher) {
	for _, s := range searchers {
		s.Release()
	}
}

// Description is a read-only summary of a context.
type Description struct {
	ID             string    `json:"id" yaml:"id"`
	RepositoryID   string    `json:"repository_id" yaml:"repository_id"`
	Repository     string    `json:"repository,omitempty" yaml:"repository,omitempty"`
	IndexDir       string    `json:"index_dir,omitempty" yaml:"index_dir,omitempty"`
	RepositoryURL  string    `json:"repository_url,omitempty" yaml:"repository_url,omitempty"`
	IndexUpdateURL string    `json:"index_update_url,omitempty" yaml:"index_update_url,omitempty"`
	Creators       []string  `json:"creators,omitempty" yaml:"creators,omitempty"`
	Searchable     bool      `json:"searchable" yaml:"searchable"`
	Merged         bool      `json:"merged" yaml:"merged"`
	Members        []string  `json:"members,omitempty" yaml:"members,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitzero" yaml:"timestamp,omitempty"`
	Documents      uint64    `json:"documents" yaml:"documents"`
}
