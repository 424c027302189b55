package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/idea-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local runs
// and degraded deployments without a postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ideas (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	industry           TEXT NOT NULL DEFAULT '',
	one_liner          TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	target_audience    TEXT NOT NULL DEFAULT '',
	core_problem       TEXT NOT NULL DEFAULT '',
	opportunity_score  REAL,
	problem_score      REAL,
	feasibility_score  REAL,
	trending_score     REAL,
	total_score        REAL,
	demand_level       TEXT NOT NULL DEFAULT 'medium',
	competition_level  TEXT NOT NULL DEFAULT 'medium',
	pain_points        TEXT NOT NULL DEFAULT '[]',
	monetization_ideas TEXT NOT NULL DEFAULT '[]',
	product_ideas      TEXT NOT NULL DEFAULT '[]',
	validation_signals TEXT NOT NULL DEFAULT '[]',
	sources            TEXT NOT NULL DEFAULT '[]',
	featured_date      TEXT NOT NULL UNIQUE,
	display_order      INTEGER NOT NULL DEFAULT 0,
	is_published       INTEGER NOT NULL DEFAULT 1,
	is_featured        INTEGER NOT NULL DEFAULT 1,
	generated_by       TEXT NOT NULL DEFAULT '',
	generation_prompt  TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ideas_featured_date ON ideas(featured_date DESC);

CREATE TABLE IF NOT EXISTS failed_ideas (
	id        TEXT PRIMARY KEY,
	payload   TEXT NOT NULL,
	reason    TEXT NOT NULL,
	failed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Migrate creates the schema if missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// InsertIdea writes a new idea row and returns the generated id.
func (s *SQLiteStore) InsertIdea(ctx context.Context, idea *model.Idea) (string, error) {
	painPoints, err := jsonList(idea.PainPoints)
	if err != nil {
		return "", err
	}
	monetization, err := jsonList(idea.MonetizationIdeas)
	if err != nil {
		return "", err
	}
	productIdeas, err := jsonList(idea.ProductIdeas)
	if err != nil {
		return "", err
	}
	signals, err := jsonList(idea.ValidationSignals)
	if err != nil {
		return "", err
	}
	sources, err := json.Marshal(idea.Sources)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal sources")
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `INSERT INTO ideas (
		id, name, industry, one_liner, description, target_audience, core_problem,
		opportunity_score, problem_score, feasibility_score, trending_score, total_score,
		demand_level, competition_level,
		pain_points, monetization_ideas, product_ideas, validation_signals, sources,
		featured_date, display_order, is_published, is_featured, generated_by, generation_prompt
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, idea.Name, idea.Industry, idea.OneLiner, idea.Description, idea.TargetAudience, idea.CoreProblem,
		idea.OpportunityScore, idea.ProblemScore, idea.FeasibilityScore, idea.TrendingScore, idea.TotalScore,
		string(idea.DemandLevel), string(idea.CompetitionLevel),
		string(painPoints), string(monetization), string(productIdeas), string(signals), string(sources),
		idea.FeaturedDate.Format("2006-01-02"), idea.DisplayOrder, idea.IsPublished, idea.IsFeatured,
		idea.GeneratedBy, idea.GenerationPrompt,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert idea")
	}
	return id, nil
}

// GetIdeaByDate returns the idea featured on date, or (nil, nil) when absent.
func (s *SQLiteStore) GetIdeaByDate(ctx context.Context, date time.Time) (*model.Idea, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		id, name, industry, one_liner, description, target_audience, core_problem,
		opportunity_score, problem_score, feasibility_score, trending_score, total_score,
		demand_level, competition_level,
		pain_points, monetization_ideas, product_ideas, validation_signals, sources,
		featured_date, display_order, is_published, is_featured, generated_by, generation_prompt, created_at
	FROM ideas WHERE featured_date = ?`, date.Format("2006-01-02"))

	idea, err := scanSQLiteIdea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get idea by date")
	}
	return idea, nil
}

// ListIdeas returns recent ideas, newest featured date first.
func (s *SQLiteStore) ListIdeas(ctx context.Context, limit, offset int) ([]model.Idea, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, name, industry, one_liner, description, target_audience, core_problem,
		opportunity_score, problem_score, feasibility_score, trending_score, total_score,
		demand_level, competition_level,
		pain_points, monetization_ideas, product_ideas, validation_signals, sources,
		featured_date, display_order, is_published, is_featured, generated_by, generation_prompt, created_at
	FROM ideas ORDER BY featured_date DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ideas")
	}
	defer rows.Close()

	var out []model.Idea
	for rows.Next() {
		idea, scanErr := scanSQLiteIdea(rows)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "sqlite: scan idea")
		}
		out = append(out, *idea)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list ideas rows")
	}
	return out, nil
}

// EnqueueFailed dead-letters an idea whose strict insert failed.
func (s *SQLiteStore) EnqueueFailed(ctx context.Context, idea *model.Idea, reason string) error {
	payload, err := json.Marshal(idea)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal failed idea")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO failed_ideas (id, payload, reason) VALUES (?, ?, ?)`,
		uuid.NewString(), string(payload), reason,
	); err != nil {
		return eris.Wrap(err, "sqlite: enqueue failed idea")
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteIdea(row rowScanner) (*model.Idea, error) {
	var (
		idea         model.Idea
		demand       string
		competition  string
		painPoints   string
		monetization string
		productIdeas string
		signals      string
		sources      string
		featured     string
		createdAt    string
	)
	err := row.Scan(
		&idea.ID, &idea.Name, &idea.Industry, &idea.OneLiner, &idea.Description,
		&idea.TargetAudience, &idea.CoreProblem,
		&idea.OpportunityScore, &idea.ProblemScore, &idea.FeasibilityScore,
		&idea.TrendingScore, &idea.TotalScore,
		&demand, &competition,
		&painPoints, &monetization, &productIdeas, &signals, &sources,
		&featured, &idea.DisplayOrder, &idea.IsPublished, &idea.IsFeatured,
		&idea.GeneratedBy, &idea.GenerationPrompt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	idea.DemandLevel = model.Level(demand)
	idea.CompetitionLevel = model.Level(competition)

	if idea.FeaturedDate, err = time.Parse("2006-01-02", featured); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse featured_date")
	}
	if t, parseErr := time.Parse("2006-01-02 15:04:05", createdAt); parseErr == nil {
		idea.CreatedAt = t
	}

	for _, pair := range []struct {
		raw string
		dst *[]string
	}{
		{painPoints, &idea.PainPoints},
		{monetization, &idea.MonetizationIdeas},
		{productIdeas, &idea.ProductIdeas},
		{signals, &idea.ValidationSignals},
	} {
		if pair.raw != "" {
			if err := json.Unmarshal([]byte(pair.raw), pair.dst); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal list column")
			}
		}
	}
	if sources != "" {
		if err := json.Unmarshal([]byte(sources), &idea.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sources")
		}
	}

	return &idea, nil
}
