package searcher

import (
	"context"
	"iter"
	"sync"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

// Iterator yields hits one context at a time, each in uinfo order. It pins
// the readers it searches until Close.
//
//	it, err := engine.SearchIterator(ctx, req, contexts, false)
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//		use(it.Info())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	ctx       context.Context
	req       Request
	searchers []*index.Searcher
	pageSize  int
	totalHits int

	skip    int
	emitted int

	cur   int
	pager *pager
	buf   []*artifact.Info
	info  *artifact.Info
	err   error
	done  bool

	closeOnce sync.Once
}

// TotalHits is the number of raw matches across the searched contexts,
// before filtering and windowing.
func (it *Iterator) TotalHits() int { return it.totalHits }

// Contexts returns how many indexing contexts the iterator reads.
func (it *Iterator) Contexts() int { return len(it.searchers) }

// Next advances to the next hit.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if it.req.Count > 0 && it.emitted >= it.req.Count {
		it.done = true
		return false
	}
	for {
		info, ok := it.advance()
		if !ok {
			it.done = true
			it.info = nil
			return false
		}
		if it.req.Filter != nil && !it.req.Filter(info) {
			continue
		}
		if it.skip > 0 {
			it.skip--
			continue
		}
		it.info = info
		it.emitted++
		return true
	}
}

func (it *Iterator) advance() (*artifact.Info, bool) {
	for len(it.buf) == 0 {
		if err := it.ctx.Err(); err != nil {
			it.err = err
			return nil, false
		}
		if it.pager == nil {
			if it.cur >= len(it.searchers) {
				return nil, false
			}
			it.pager = newPager(it.searchers[it.cur], it.req.Query, it.pageSize)
		}
		page, err := it.pager.next(it.ctx)
		if err != nil {
			it.err = ierrors.New(ierrors.ErrCodeSearchFailed,
				"search of context "+it.searchers[it.cur].Context.ID()+" failed", err)
			return nil, false
		}
		if page == nil {
			it.pager = nil
			it.cur++
			continue
		}
		it.buf = page
	}
	info := it.buf[0]
	it.buf = it.buf[1:]
	return info, true
}

// Info returns the current hit.
func (it *Iterator) Info() *artifact.Info { return it.info }

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error { return it.err }

// All adapts the iterator to a range-over-func sequence. Iteration stops at
// the first error, which is yielded with a nil info.
func (it *Iterator) All() iter.Seq2[*artifact.Info, error] {
	return func(yield func(*artifact.Info, error) bool) {
		for it.Next() {
			if !yield(it.Info(), nil) {
				return
			}
		}
		if it.err != nil {
			yield(nil, it.err)
		}
	}
}

// Close releases the pinned readers. Safe to call more than once.
func (it *Iterator) Close() error {
	it.closeOnce.Do(func() {
		index.ReleaseAll(it.searchers)
		it.done = true
		it.buf = nil
	})
	return nil
}
