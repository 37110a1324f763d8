package searcher

import (
	"context"
	"errors"

	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

// ErrNilQuery is returned for requests without a query.
var ErrNilQuery = errors.New("query is required")

// Engine executes searches over already resolved contexts. With force
// false, contexts that are not searchable are skipped.
type Engine interface {
	SearchFlat(ctx context.Context, req FlatRequest, contexts []index.Context, force bool) (*FlatResponse, error)
	SearchGrouped(ctx context.Context, req GroupedRequest, contexts []index.Context, force bool) (*GroupedResponse, error)
	SearchIterator(ctx context.Context, req IteratorRequest, contexts []index.Context, force bool) (*Iterator, error)
}

// Request holds what every search shape shares.
type Request struct {
	Query bq.Query
	// Contexts are explicit targets. Empty means every registered context.
	Contexts []index.Context
	// From skips leading results.
	From int
	// Count caps returned results (groups for grouped searches). Zero means no cap.
	Count int
	// Filter drops hits it returns false for. Totals count only kept hits.
	Filter func(*artifact.Info) bool
}

// FlatRequest asks for a flat result list.
type FlatRequest struct {
	Request
}

// FlatResponse carries a flat result list.
type FlatResponse struct {
	TotalHits int
	Results   []*artifact.Info
}

// GroupedRequest asks for results bucketed by key.
type GroupedRequest struct {
	Request
	// GroupKey maps a hit to its group. Nil groups by groupId:artifactId.
	GroupKey func(*artifact.Info) string
}

// Group is one bucket of a grouped response.
type Group struct {
	Key   string
	Infos []*artifact.Info
}

// GroupedResponse carries grouped results.
type GroupedResponse struct {
	// TotalHits counts hits across all groups.
	TotalHits int
	// TotalGroups counts groups before windowing.
	TotalGroups int
	Groups      []Group
}

// IteratorRequest asks for a lazily produced result sequence.
type IteratorRequest struct {
	Request
}
