package indexer

import (
	"context"
	"errors"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

// ErrNilContext is returned when no indexing context is given.
var ErrNilContext = errors.New("indexing context is required")

// Engine mutates a context's index without committing.
type Engine interface {
	// Index adds a newly discovered artifact.
	Index(ctx context.Context, ic *index.IndexingContext, ac *artifact.Context) error

	// Update adds or replaces an artifact.
	Update(ctx context.Context, ic *index.IndexingContext, ac *artifact.Context) error

	// Remove deletes an artifact. Removing an unknown artifact is a no-op.
	Remove(ctx context.Context, ic *index.IndexingContext, ac *artifact.Context) error
}
