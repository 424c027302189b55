package pipeline

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/idea-pipeline/internal/model"
	"github.com/sells-group/idea-pipeline/internal/store"
)

// WriteError is a persistence failure with the fully sanitized record
// attached for caller-side logging and manual recovery.
type WriteError struct {
	Idea *model.Idea
	Err  error
}

func (e *WriteError) Error() string {
	return "pipeline: write failed: " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer persists sanitized ideas. On a numeric-type rejection it retries
// exactly once with integer-coerced scores; any other failure, or failure of
// the retry, surfaces as a WriteError. This is the pipeline's final step, so
// failures are reported, never absorbed.
type Writer struct {
	store store.Store
}

// NewWriter creates a Writer over the given store.
func NewWriter(st store.Store) *Writer {
	return &Writer{store: st}
}

// Write inserts the idea and returns the persisted id.
func (w *Writer) Write(ctx context.Context, idea *model.Idea) (string, error) {
	id, err := w.store.InsertIdea(ctx, idea)
	if err == nil {
		return id, nil
	}

	if store.IsUniqueViolation(err) {
		// A concurrent run won the date; benign, surface without dead-letter.
		return "", &WriteError{Idea: idea, Err: err}
	}

	if store.IsNumericTypeError(err) {
		zap.L().Warn("writer: numeric type rejection, retrying with integer scores",
			zap.String("name", idea.Name),
			zap.Error(err),
		)
		coerced := coerceIntegerScores(*idea)
		if id, retryErr := w.store.InsertIdea(ctx, &coerced); retryErr == nil {
			return id, nil
		}
	}

	// Degraded fallback: dead-letter the record so nothing is lost, then
	// surface the failure.
	if dlqErr := w.store.EnqueueFailed(ctx, idea, err.Error()); dlqErr != nil {
		zap.L().Error("writer: dead-letter enqueue failed", zap.Error(dlqErr))
	}

	return "", &WriteError{Idea: idea, Err: err}
}

// coerceIntegerScores rounds the scores that hit integer-typed columns in
// some deployments to the nearest whole number.
func coerceIntegerScores(idea model.Idea) model.Idea {
	idea.OpportunityScore = roundWhole(idea.OpportunityScore)
	idea.TrendingScore = roundWhole(idea.TrendingScore)
	return idea
}

func roundWhole(s *float64) *float64 {
	if s == nil {
		return nil
	}
	v := math.Round(*s)
	return &v
}
