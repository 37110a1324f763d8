package nexus

import (
	"context"
	"errors"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

// writable narrows c to a context that owns storage.
func writable(c index.Context, op string) (*index.IndexingContext, error) {
	switch v := c.(type) {
	case *index.IndexingContext:
		return v, nil
	case nil:
		return nil, ierrors.ValidationError("context is required", nil)
	default:
		return nil, ierrors.UnsupportedError(op, "merged context "+c.ID())
	}
}

// ArtifactDiscovered indexes one artifact without committing. Rescans use
// it for every crawled artifact.
func (n *Indexer) ArtifactDiscovered(ctx context.Context, c index.Context, ac *artifact.Context) error {
	ic, err := writable(c, "indexing")
	if err != nil {
		return err
	}
	return n.engine.Index(ctx, ic, ac)
}

// AddArtifact adds or replaces one artifact and commits.
func (n *Indexer) AddArtifact(ctx context.Context, c index.Context, ac *artifact.Context) error {
	return n.AddArtifacts(ctx, c, []*artifact.Context{ac})
}

// AddArtifacts adds or replaces artifacts with a single commit. The first
// failure stops the batch; artifacts buffered before it are still committed.
func (n *Indexer) AddArtifacts(ctx context.Context, c index.Context, acs []*artifact.Context) error {
	ic, err := writable(c, "indexing")
	if err != nil {
		return err
	}
	var batchErr error
	for _, ac := range acs {
		if err := n.engine.Update(ctx, ic, ac); err != nil {
			batchErr = err
			break
		}
	}
	return errors.Join(batchErr, ic.Commit())
}

// DeleteArtifact removes one artifact and commits.
func (n *Indexer) DeleteArtifact(ctx context.Context, c index.Context, ac *artifact.Context) error {
	return n.DeleteArtifacts(ctx, c, []*artifact.Context{ac})
}

// DeleteArtifacts removes artifacts with a single commit. The first
// failure stops the batch; removals buffered before it are still committed.
func (n *Indexer) DeleteArtifacts(ctx context.Context, c index.Context, acs []*artifact.Context) error {
	ic, err := writable(c, "deletion")
	if err != nil {
		return err
	}
	var batchErr error
	for _, ac := range acs {
		if err := n.engine.Remove(ctx, ic, ac); err != nil {
			batchErr = err
			break
		}
	}
	return errors.Join(batchErr, ic.Commit())
}
