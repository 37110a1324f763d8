// Package nexus is the artifact indexer facade. It owns the context
// registry and coordinates rescans, artifact mutations, searches and
// identification across contexts.
//
// Rescans build a fresh index in a staging directory next to the live one
// and swap it in only when the scan succeeds, so searches observe either
// the old or the new contents of a context, never a mix. Staging resources
// are removed on every exit path.
package nexus

import (
	"context"
	"log/slog"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/journal"
	"github.com/Aman-CERP/artifactidx/internal/query"
	"github.com/Aman-CERP/artifactidx/internal/scanner"
	"github.com/Aman-CERP/artifactidx/pkg/indexer"
	"github.com/Aman-CERP/artifactidx/pkg/searcher"
)

// DefaultDigestCacheSize is how many file digests IdentifyFile remembers.
const DefaultDigestCacheSize = 1024

// Crawler enumerates the artifacts of a repository.
type Crawler interface {
	Scan(ctx context.Context, req scanner.Request) (*scanner.Result, error)
}

// Indexer is the facade over the context registry and its collaborators.
type Indexer struct {
	registry *index.Registry
	engine   indexer.Engine
	searcher searcher.Engine
	crawler  Crawler
	queries  *query.Builder
	journal  *journal.Journal
	exclude  []string
	logger   *slog.Logger

	digests *lru.Cache[digestKey, string]

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithRegistry uses an existing registry instead of a new one.
func WithRegistry(r *index.Registry) Option {
	return func(n *Indexer) {
		n.registry = r
	}
}

// WithEngine sets the indexer engine used for artifact mutations.
func WithEngine(e indexer.Engine) Option {
	return func(n *Indexer) {
		n.engine = e
	}
}

// WithSearcher sets the search engine.
func WithSearcher(s searcher.Engine) Option {
	return func(n *Indexer) {
		n.searcher = s
	}
}

// WithCrawler sets the repository crawler.
func WithCrawler(c Crawler) Option {
	return func(n *Indexer) {
		n.crawler = c
	}
}

// WithJournal records every rescan in j.
func WithJournal(j *journal.Journal) Option {
	return func(n *Indexer) {
		n.journal = j
	}
}

// WithExclude sets scan exclusion patterns applied to every rescan.
func WithExclude(patterns ...string) Option {
	return func(n *Indexer) {
		n.exclude = append([]string(nil), patterns...)
	}
}

// WithDigestCacheSize sets how many file digests are cached. Zero disables the cache.
func WithDigestCacheSize(size int) Option {
	return func(n *Indexer) {
		n.digests = nil
		if size > 0 {
			// lru.New only fails for a non-positive size.
			n.digests, _ = lru.New[digestKey, string](size)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Indexer) {
		n.logger = l
	}
}

// New creates an Indexer with default collaborators for anything not
// supplied through options.
func New(opts ...Option) *Indexer {
	n := &Indexer{
		registry: index.NewRegistry(),
		queries:  query.NewBuilder(),
		logger:   slog.Default(),
		locks:    make(map[string]chan struct{}),
	}
	// DefaultDigestCacheSize is positive, so lru.New cannot fail.
	n.digests, _ = lru.New[digestKey, string](DefaultDigestCacheSize)
	for _, opt := range opts {
		opt(n)
	}
	if n.engine == nil {
		n.engine = indexer.New(indexer.WithLogger(n.logger))
	}
	if n.searcher == nil {
		n.searcher = searcher.New(searcher.WithLogger(n.logger))
	}
	if n.crawler == nil {
		n.crawler = scanner.New(n.logger)
	}
	return n
}

// Registry returns the context registry.
func (n *Indexer) Registry() *index.Registry { return n.registry }

// Close closes every registered context. Files stay on disk.
func (n *Indexer) Close() error {
	return n.registry.Close()
}

// digestKey identifies file content by path, size and modification time.
type digestKey struct {
	path  string
	size  int64
	mtime int64
}

func keyFor(path string, fi os.FileInfo) digestKey {
	return digestKey{path: path, size: fi.Size(), mtime: fi.ModTime().UnixNano()}
}
