// Package pipeline sequences the daily idea generation run: existence check,
// research, generation, recovery, sanitization, persistence, notification.
// Retry and fallback live in the lower layers; the driver only sequences and
// propagates typed, per-stage failures.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/idea-pipeline/internal/gen"
	"github.com/sells-group/idea-pipeline/internal/recovery"
	"github.com/sells-group/idea-pipeline/internal/sanitize"
	"github.com/sells-group/idea-pipeline/internal/store"
	"github.com/sells-group/idea-pipeline/pkg/dispatch"
)

// Stage identifies where a run failed.
type Stage string

// Pipeline stages, in execution order.
const (
	StageCheckExisting Stage = "check_existing"
	StageResearch      Stage = "research"
	StageGenerate      Stage = "generate"
	StageRecover       Stage = "recover"
	StageSanitize      Stage = "sanitize"
	StagePersist       Stage = "persist"
	StageNotify        Stage = "notify"
)

// ErrAlreadyExists means an idea is already persisted for the target date.
var ErrAlreadyExists = eris.New("pipeline: idea already exists for date")

// StageError wraps a failure with the stage it happened in, so every aborted
// run has a distinct loggable reason.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a completed run.
type Result struct {
	IdeaID   string `json:"idea_id"`
	Backend  string `json:"backend"`
	Notified int    `json:"notified"`
}

// Driver composes the pipeline stages.
type Driver struct {
	store      store.Store
	researcher *Researcher
	orch       *gen.Orchestrator
	writer     *Writer
	dispatch   dispatch.Client
}

// NewDriver creates a Driver with all dependencies.
func NewDriver(st store.Store, researcher *Researcher, orch *gen.Orchestrator, dispatcher dispatch.Client) *Driver {
	return &Driver{
		store:      st,
		researcher: researcher,
		orch:       orch,
		writer:     NewWriter(st),
		dispatch:   dispatcher,
	}
}

// maxRawLogged caps how much raw model output lands in the log on recovery
// failures.
const maxRawLogged = 2000

// Run generates, persists, and announces the idea for the target date. The
// existence check is advisory only: the store's uniqueness constraint on
// featured_date is the real guard against concurrent runs.
func (d *Driver) Run(ctx context.Context, date time.Time) (*Result, error) {
	date = date.UTC().Truncate(24 * time.Hour)
	log := zap.L().With(zap.String("featured_date", date.Format("2006-01-02")))
	log.Info("pipeline: starting run")

	// CheckExisting
	existing, err := d.store.GetIdeaByDate(ctx, date)
	if err != nil {
		return nil, &StageError{Stage: StageCheckExisting, Err: err}
	}
	if existing != nil {
		log.Info("pipeline: idea already exists, short-circuiting",
			zap.String("idea_id", existing.ID),
		)
		return nil, &StageError{Stage: StageCheckExisting, Err: ErrAlreadyExists}
	}

	// Research (absence of results is not a failure)
	research := d.researcher.Gather(ctx, date)

	// Generate
	prompt := BuildPrompt(date, research)
	completion, err := d.orch.Generate(ctx, prompt)
	if err != nil {
		return nil, &StageError{Stage: StageGenerate, Err: err}
	}
	log.Info("pipeline: generation complete",
		zap.String("backend", completion.Backend),
		zap.Int("raw_len", len(completion.Text)),
	)

	// Recover
	rec, err := recoverRecord(completion.Text, log)
	if err != nil {
		return nil, &StageError{Stage: StageRecover, Err: err}
	}

	// Sanitize (pure, cannot fail)
	idea := sanitize.Idea(rec, sanitize.Context{
		FeaturedDate: date,
		GeneratedBy:  completion.Backend,
		Prompt:       prompt,
		Sources:      research,
	})

	// Persist
	id, err := d.writer.Write(ctx, &idea)
	if err != nil {
		if store.IsUniqueViolation(err) {
			// Concurrent run won the insert race; benign.
			log.Info("pipeline: lost insert race to concurrent run", zap.Error(err))
			return nil, &StageError{Stage: StagePersist, Err: ErrAlreadyExists}
		}
		var we *WriteError
		if errors.As(err, &we) {
			log.Error("pipeline: persist failed, record dead-lettered",
				zap.String("name", we.Idea.Name),
				zap.Error(we.Err),
			)
		}
		return nil, &StageError{Stage: StagePersist, Err: err}
	}

	// Notify (failure is logged, not fatal: the idea is already persisted)
	notified := 0
	if d.dispatch != nil {
		n, dispatchErr := d.dispatch.Dispatch(ctx, id)
		if dispatchErr != nil {
			log.Warn("pipeline: notification dispatch failed", zap.Error(dispatchErr))
		} else {
			notified = n
		}
	}

	log.Info("pipeline: run complete",
		zap.String("idea_id", id),
		zap.String("name", idea.Name),
		zap.String("backend", completion.Backend),
		zap.Int("notified", notified),
	)

	return &Result{IdeaID: id, Backend: completion.Backend, Notified: notified}, nil
}

// recoverRecord wraps recovery with raw-output logging for offline debugging.
func recoverRecord(raw string, log *zap.Logger) (map[string]any, error) {
	rec, err := recovery.Recover(raw)
	if err != nil {
		truncated := raw
		if len(truncated) > maxRawLogged {
			truncated = truncated[:maxRawLogged]
		}
		log.Error("pipeline: structured recovery failed",
			zap.String("raw_output", truncated),
			zap.Error(err),
		)
		return nil, err
	}
	return rec, nil
}
