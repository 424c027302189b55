// Package store persists generated ideas.
package store

import (
	"context"
	"time"

	"github.com/sells-group/idea-pipeline/internal/model"
)

// Store defines the persistence interface for the generation pipeline.
type Store interface {
	// InsertIdea writes a new idea and returns its generated id. The
	// featured_date column carries a uniqueness constraint: concurrent inserts
	// for the same date fail with a unique violation rather than duplicating.
	InsertIdea(ctx context.Context, idea *model.Idea) (string, error)

	// GetIdeaByDate returns the idea featured on the given date, or (nil, nil)
	// when none exists.
	GetIdeaByDate(ctx context.Context, date time.Time) (*model.Idea, error)

	// ListIdeas returns recent ideas, newest featured date first.
	ListIdeas(ctx context.Context, limit, offset int) ([]model.Idea, error)

	// EnqueueFailed records an idea whose strict insert failed, so it can be
	// recovered manually. Best-effort; callers still surface the write error.
	EnqueueFailed(ctx context.Context, idea *model.Idea, reason string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
