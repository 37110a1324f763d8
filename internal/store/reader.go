package store

import (
	"context"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Reader is a point-in-time handle on the committed contents of a store.
// It keeps its generation open across ReplaceFrom and Close until Release.
type Reader struct {
	store    *Store
	gen      *generation
	once     sync.Once
	mu       sync.RWMutex
	released bool
}

// Acquire pins the live generation for reading.
func (s *Store) Acquire() (*Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.cur == nil || s.cur.idx == nil {
		return nil, ErrClosed
	}
	s.cur.refs++
	return &Reader{store: s, gen: s.cur}, nil
}

// Release unpins the generation. Safe to call more than once.
func (r *Reader) Release() {
	r.once.Do(func() {
		r.mu.Lock()
		r.released = true
		r.mu.Unlock()

		s := r.store
		s.mu.Lock()
		defer s.mu.Unlock()
		r.gen.refs--
		if r.gen.retired && r.gen.refs == 0 {
			s.retireLocked(r.gen)
		}
	})
}

// Search runs req against the pinned generation.
func (r *Reader) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.released {
		return nil, ErrClosed
	}
	return r.gen.idx.SearchInContext(ctx, req)
}

// DocCount returns the number of documents in the pinned generation.
func (r *Reader) DocCount() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.released {
		return 0, ErrClosed
	}
	return r.gen.idx.DocCount()
}

// Walk visits every document of the pinned generation in id order.
func (r *Reader) Walk(ctx context.Context, fn func(Document) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.released {
		return ErrClosed
	}
	return walk(ctx, r.gen.idx, fn)
}

// Store returns the store the reader was acquired from.
func (r *Reader) Store() *Store {
	return r.store
}
