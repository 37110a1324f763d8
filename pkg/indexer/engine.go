package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

// DefaultEngine is the creator-driven Engine.
type DefaultEngine struct {
	logger *slog.Logger
}

// Option configures a DefaultEngine.
type Option func(*DefaultEngine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *DefaultEngine) {
		e.logger = l
	}
}

// New creates a DefaultEngine.
func New(opts ...Option) *DefaultEngine {
	e := &DefaultEngine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Engine = (*DefaultEngine)(nil)

// Index implements Engine.
func (e *DefaultEngine) Index(ctx context.Context, ic *index.IndexingContext, ac *artifact.Context) error {
	return e.put(ctx, ic, ac)
}

// Update implements Engine.
func (e *DefaultEngine) Update(ctx context.Context, ic *index.IndexingContext, ac *artifact.Context) error {
	return e.put(ctx, ic, ac)
}

// Remove implements Engine.
func (e *DefaultEngine) Remove(ctx context.Context, ic *index.IndexingContext, ac *artifact.Context) error {
	if ic == nil {
		return ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	coords := ac.Coordinates
	if ac.Info != nil {
		coords = ac.Info.Coordinates
	}
	if err := coords.Validate(); err != nil {
		return ierrors.ValidationError(err.Error(), err)
	}
	if err := ic.Store().Delete(coords.UInfo()); err != nil {
		return ierrors.New(ierrors.ErrCodeIndexFailed, fmt.Sprintf("failed to remove %s", coords), err)
	}
	return nil
}

func (e *DefaultEngine) put(ctx context.Context, ic *index.IndexingContext, ac *artifact.Context) error {
	if ic == nil {
		return ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if ac.Info == nil {
		if err := e.populate(ic, ac); err != nil {
			return err
		}
	}
	if err := ac.Info.Coordinates.Validate(); err != nil {
		return ierrors.ValidationError(err.Error(), err)
	}

	doc := artifact.Document(ac.Info, ic.Creators())
	if err := ic.Store().Put(doc); err != nil {
		return ierrors.New(ierrors.ErrCodeIndexFailed, fmt.Sprintf("failed to index %s", ac.Info.Coordinates), err)
	}
	return nil
}

// populate runs every creator. Creator failures are recorded on ac and
// the artifact is still indexed with what was extracted; only fatal
// errors abort.
func (e *DefaultEngine) populate(ic *index.IndexingContext, ac *artifact.Context) error {
	ac.Info = &artifact.Info{Coordinates: ac.Coordinates, Size: -1}
	for _, c := range ic.Creators() {
		if err := c.Populate(ac); err != nil {
			if ierrors.IsFatal(err) {
				return err
			}
			e.logger.Debug("creator_failed",
				slog.String("context_id", ic.ID()),
				slog.String("creator", c.ID()),
				slog.String("artifact", ac.Coordinates.String()),
				slog.String("error", err.Error()))
			ac.AddError(fmt.Errorf("%s: %w", c.ID(), err))
		}
	}
	ac.Info.ContextID = ic.ID()
	ac.Info.RepositoryID = ic.RepositoryID()
	return nil
}
