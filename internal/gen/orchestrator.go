// Package gen drives text generation across an ordered list of backend
// candidates with per-candidate retry and quota-based fallback.
package gen

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/idea-pipeline/internal/model"
	"github.com/sells-group/idea-pipeline/internal/resilience"
)

// ExhaustedError means every backend candidate was tried and none produced a
// completion. No partial output exists.
type ExhaustedError struct {
	Last error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return "gen: all backend candidates exhausted"
	}
	return "gen: all backend candidates exhausted: " + e.Last.Error()
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Orchestrator tries candidates in order, retrying transient failures on the
// same candidate and advancing immediately on quota signals.
type Orchestrator struct {
	candidates []Candidate
	retry      resilience.RetryConfig
}

// NewOrchestrator creates an orchestrator over the given ordered candidates.
func NewOrchestrator(candidates []Candidate) *Orchestrator {
	return &Orchestrator{
		candidates: candidates,
		retry:      resilience.DefaultRetryConfig(),
	}
}

// WithRetryConfig overrides the per-candidate retry configuration.
func (o *Orchestrator) WithRetryConfig(cfg resilience.RetryConfig) *Orchestrator {
	o.retry = cfg
	return o
}

// Generate runs the fallback cascade for a prompt. A candidate gets up to
// MaxAttempts tries with backoff between them; a quota signal abandons the
// candidate's remaining attempts and moves to the next one. When every
// candidate is exhausted an *ExhaustedError wrapping the last failure is
// returned.
func (o *Orchestrator) Generate(ctx context.Context, prompt string) (*model.RawCompletion, error) {
	var lastErr error

	for _, cand := range o.candidates {
		cfg := o.retry
		cfg.ShouldRetry = func(err error) bool {
			// Quota failures are never retried on the same candidate.
			return !resilience.IsQuotaSignal(err)
		}

		attempt := 0
		text, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
			attempt++
			if cand.limiter != nil {
				if waitErr := cand.limiter.Wait(ctx); waitErr != nil {
					return "", waitErr
				}
			}
			t, genErr := cand.Gen.Generate(ctx, prompt, cand.TokenBudget)
			logAttempt(cand.Label, attempt, genErr)
			return t, genErr
		})
		if err == nil {
			return &model.RawCompletion{Text: text, Backend: cand.Label}, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}

		if resilience.IsQuotaSignal(err) {
			zap.L().Warn("gen: quota signal, advancing to next candidate",
				zap.String("candidate", cand.Label),
				zap.Error(err),
			)
		} else {
			zap.L().Warn("gen: candidate exhausted",
				zap.String("candidate", cand.Label),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
		}
	}

	return nil, &ExhaustedError{Last: lastErr}
}

func logAttempt(label string, attempt int, err error) {
	switch {
	case err == nil:
		zap.L().Info("gen: attempt succeeded",
			zap.String("candidate", label),
			zap.Int("attempt", attempt),
		)
	case resilience.IsQuotaSignal(err):
		zap.L().Warn("gen: attempt hit quota",
			zap.String("candidate", label),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	default:
		zap.L().Warn("gen: attempt failed",
			zap.String("candidate", label),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
