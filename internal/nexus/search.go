package nexus

import (
	"context"
	"os"
	"slices"

	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/query"
	"github.com/Aman-CERP/artifactidx/pkg/searcher"
)

// ConstructQuery compiles a field query. Malformed input yields an invalid
// query error.
func (n *Indexer) ConstructQuery(field, text string, match query.MatchType) (bq.Query, error) {
	return n.queries.Build(field, text, match)
}

// targets resolves the contexts a request runs against. Without explicit
// targets every registered context is searched, honouring the searchable
// flag. Explicit targets bypass the registry and are always searched.
func (n *Indexer) targets(explicit []index.Context) ([]index.Context, bool) {
	if len(explicit) == 0 {
		return n.registry.All(), false
	}
	return explicit, true
}

// SearchFlat runs a flat search.
func (n *Indexer) SearchFlat(ctx context.Context, req searcher.FlatRequest) (*searcher.FlatResponse, error) {
	contexts, force := n.targets(req.Contexts)
	return n.searcher.SearchFlat(ctx, req, contexts, force)
}

// SearchGrouped runs a grouped search.
func (n *Indexer) SearchGrouped(ctx context.Context, req searcher.GroupedRequest) (*searcher.GroupedResponse, error) {
	contexts, force := n.targets(req.Contexts)
	return n.searcher.SearchGrouped(ctx, req, contexts, force)
}

// SearchIterator runs an iterator search. The caller must Close the iterator.
func (n *Indexer) SearchIterator(ctx context.Context, req searcher.IteratorRequest) (*searcher.Iterator, error) {
	contexts, force := n.targets(req.Contexts)
	return n.searcher.SearchIterator(ctx, req, contexts, force)
}

// Identify returns every artifact whose field exactly equals text.
func (n *Indexer) Identify(ctx context.Context, field, text string, contexts ...index.Context) ([]*artifact.Info, error) {
	q, err := n.ConstructQuery(field, text, query.Exact)
	if err != nil {
		return nil, err
	}
	return n.IdentifyQuery(ctx, q, contexts...)
}

// IdentifyQuery returns every artifact matching q, ordered by uinfo then
// context id.
func (n *Indexer) IdentifyQuery(ctx context.Context, q bq.Query, contexts ...index.Context) ([]*artifact.Info, error) {
	it, err := n.SearchIterator(ctx, searcher.IteratorRequest{
		Request: searcher.Request{Query: q, Contexts: contexts},
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	var out []*artifact.Info
	for it.Next() {
		out = append(out, it.Info())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	slices.SortFunc(out, artifact.Compare)
	return out, nil
}

// IdentifyFile returns every artifact whose SHA-1 equals that of the file.
func (n *Indexer) IdentifyFile(ctx context.Context, path string, contexts ...index.Context) ([]*artifact.Info, error) {
	sum, err := n.Digest(path)
	if err != nil {
		return nil, err
	}
	return n.Identify(ctx, artifact.FieldSHA1, sum, contexts...)
}

// Digest returns the lowercase hex SHA-1 of a file. Results are cached by
// path, size and modification time.
func (n *Indexer) Digest(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", ierrors.IOError("cannot read "+path, err)
	}
	if fi.IsDir() {
		return "", ierrors.ValidationError(path+" is a directory", nil)
	}

	key := keyFor(path, fi)
	if n.digests != nil {
		if sum, ok := n.digests.Get(key); ok {
			return sum, nil
		}
	}

	sum, err := artifact.SHA1File(path)
	if err != nil {
		if ierrors.IsFatal(err) {
			return "", err
		}
		return "", ierrors.IOError("cannot digest "+path, err)
	}
	if n.digests != nil {
		n.digests.Add(key, sum)
	}
	return sum, nil
}
