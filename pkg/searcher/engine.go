package searcher

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/blevesearch/bleve/v2"
	bq "github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/store"
)

// DefaultPageSize is how many hits are fetched per round trip to an index.
const DefaultPageSize = 200

// DefaultEngine is the bleve-backed Engine.
type DefaultEngine struct {
	pageSize    int
	parallelism int
	logger      *slog.Logger
}

// Option configures a DefaultEngine.
type Option func(*DefaultEngine)

// WithPageSize sets the per-request page size.
func WithPageSize(n int) Option {
	return func(e *DefaultEngine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithParallelism bounds how many contexts are searched at once.
func WithParallelism(n int) Option {
	return func(e *DefaultEngine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *DefaultEngine) {
		e.logger = l
	}
}

// New creates a DefaultEngine.
func New(opts ...Option) *DefaultEngine {
	e := &DefaultEngine{
		pageSize:    DefaultPageSize,
		parallelism: 8,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Engine = (*DefaultEngine)(nil)

// acquire pins readers for the contexts to search. Each indexing context
// appears once however it was reached. Without force, a context closed
// since the caller's snapshot is left out of the search.
func (e *DefaultEngine) acquire(contexts []index.Context, force bool) ([]*index.Searcher, error) {
	seen := map[*index.IndexingContext]bool{}
	var out []*index.Searcher
	for _, c := range contexts {
		if c == nil || (!force && !c.Searchable()) {
			continue
		}
		searchers, err := c.Acquire()
		if err != nil && !force && errors.Is(err, store.ErrClosed) {
			e.logger.Debug("search_context_skipped",
				slog.String("context_id", c.ID()),
				slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			index.ReleaseAll(out)
			return nil, ierrors.New(ierrors.ErrCodeSearchFailed, "cannot search context "+c.ID(), err)
		}
		for _, s := range searchers {
			if seen[s.Context] {
				s.Release()
				continue
			}
			seen[s.Context] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// collect gathers every kept hit from every searcher, ordered by uinfo
// then context id.
func (e *DefaultEngine) collect(ctx context.Context, req Request, contexts []index.Context, force bool) ([]*artifact.Info, error) {
	if req.Query == nil {
		return nil, ErrNilQuery
	}
	searchers, err := e.acquire(contexts, force)
	if err != nil {
		return nil, err
	}
	defer index.ReleaseAll(searchers)

	parts := make([][]*artifact.Info, len(searchers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, s := range searchers {
		g.Go(func() error {
			p := newPager(s, req.Query, e.pageSize)
			for {
				infos, err := p.next(gctx)
				if err != nil {
					return ierrors.New(ierrors.ErrCodeSearchFailed, "search of context "+s.Context.ID()+" failed", err)
				}
				if infos == nil {
					return nil
				}
				for _, info := range infos {
					if req.Filter == nil || req.Filter(info) {
						parts[i] = append(parts[i], info)
					}
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*artifact.Info
	for _, p := range parts {
		all = append(all, p...)
	}
	slices.SortFunc(all, artifact.Compare)

	e.logger.Debug("search_collected",
		slog.Int("contexts", len(searchers)),
		slog.Int("hits", len(all)))
	return all, nil
}

// SearchFlat implements Engine.
func (e *DefaultEngine) SearchFlat(ctx context.Context, req FlatRequest, contexts []index.Context, force bool) (*FlatResponse, error) {
	all, err := e.collect(ctx, req.Request, contexts, force)
	if err != nil {
		return nil, err
	}
	return &FlatResponse{
		TotalHits: len(all),
		Results:   window(all, req.From, req.Count),
	}, nil
}

// SearchGrouped implements Engine.
func (e *DefaultEngine) SearchGrouped(ctx context.Context, req GroupedRequest, contexts []index.Context, force bool) (*GroupedResponse, error) {
	all, err := e.collect(ctx, req.Request, contexts, force)
	if err != nil {
		return nil, err
	}

	keyOf := req.GroupKey
	if keyOf == nil {
		keyOf = func(info *artifact.Info) string { return info.GroupKey() }
	}

	// all is already in member order, so appending keeps groups sorted.
	byKey := map[string]*Group{}
	var groups []*Group
	for _, info := range all {
		key := keyOf(info)
		grp, ok := byKey[key]
		if !ok {
			grp = &Group{Key: key}
			byKey[key] = grp
			groups = append(groups, grp)
		}
		grp.Infos = append(grp.Infos, info)
	}
	slices.SortFunc(groups, func(a, b *Group) int { return cmp.Compare(a.Key, b.Key) })

	out := make([]Group, 0, len(groups))
	for _, grp := range window(groups, req.From, req.Count) {
		out = append(out, *grp)
	}
	return &GroupedResponse{
		TotalHits:   len(all),
		TotalGroups: len(groups),
		Groups:      out,
	}, nil
}

// SearchIterator implements Engine. The iterator owns the pinned readers.
func (e *DefaultEngine) SearchIterator(ctx context.Context, req IteratorRequest, contexts []index.Context, force bool) (*Iterator, error) {
	if req.Query == nil {
		return nil, ErrNilQuery
	}
	searchers, err := e.acquire(contexts, force)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, s := range searchers {
		n, err := countHits(ctx, s, req.Query)
		if err != nil {
			index.ReleaseAll(searchers)
			return nil, ierrors.New(ierrors.ErrCodeSearchFailed, "search of context "+s.Context.ID()+" failed", err)
		}
		total += n
	}

	it := &Iterator{
		ctx:       ctx,
		req:       req.Request,
		searchers: searchers,
		pageSize:  e.pageSize,
		totalHits: total,
		skip:      req.From,
	}
	return it, nil
}

func window[T any](items []T, from, count int) []T {
	if from < 0 {
		from = 0
	}
	if from >= len(items) {
		return []T{}
	}
	items = items[from:]
	if count > 0 && count < len(items) {
		items = items[:count]
	}
	return items
}

func countHits(ctx context.Context, s *index.Searcher, q bq.Query) (int, error) {
	req := bleve.NewSearchRequestOptions(q, 0, 0, false)
	res, err := s.Reader.Search(ctx, req)
	if err != nil {
		return 0, err
	}
	return int(res.Total), nil
}

// pager walks the hits of one searcher in uinfo order.
type pager struct {
	s        *index.Searcher
	q        bq.Query
	size     int
	after    []string
	finished bool
}

func newPager(s *index.Searcher, q bq.Query, size int) *pager {
	return &pager{s: s, q: q, size: size}
}

// next returns the next page, or nil once exhausted.
func (p *pager) next(ctx context.Context) ([]*artifact.Info, error) {
	if p.finished {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(p.q, p.size, 0, false)
	req.Fields = []string{"*"}
	req.SortBy([]string{"_id"})
	if p.after != nil {
		req.SetSearchAfter(p.after)
	}

	res, err := p.s.Reader.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Hits) < p.size {
		p.finished = true
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	p.after = []string{res.Hits[len(res.Hits)-1].ID}

	ic := p.s.Context
	infos := make([]*artifact.Info, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc := store.DocumentFromHit(hit)
		infos = append(infos, artifact.InfoFromDocument(doc, ic.Creators(), ic.ID(), ic.RepositoryID()))
	}
	return infos, nil
}
