package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-pipeline/internal/db"
	"github.com/sells-group/idea-pipeline/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ideas (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name               TEXT NOT NULL,
	industry           TEXT NOT NULL DEFAULT '',
	one_liner          TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	target_audience    TEXT NOT NULL DEFAULT '',
	core_problem       TEXT NOT NULL DEFAULT '',
	opportunity_score  DOUBLE PRECISION,
	problem_score      DOUBLE PRECISION,
	feasibility_score  DOUBLE PRECISION,
	trending_score     DOUBLE PRECISION,
	total_score        DOUBLE PRECISION,
	demand_level       TEXT NOT NULL DEFAULT 'medium',
	competition_level  TEXT NOT NULL DEFAULT 'medium',
	pain_points        JSONB NOT NULL DEFAULT '[]',
	monetization_ideas JSONB NOT NULL DEFAULT '[]',
	product_ideas      JSONB NOT NULL DEFAULT '[]',
	validation_signals JSONB NOT NULL DEFAULT '[]',
	sources            JSONB NOT NULL DEFAULT '[]',
	featured_date      DATE NOT NULL UNIQUE,
	display_order      INTEGER NOT NULL DEFAULT 0,
	is_published       BOOLEAN NOT NULL DEFAULT true,
	is_featured        BOOLEAN NOT NULL DEFAULT true,
	generated_by       TEXT NOT NULL DEFAULT '',
	generation_prompt  TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ideas_featured_date ON ideas(featured_date DESC);

CREATE TABLE IF NOT EXISTS failed_ideas (
	id        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	payload   JSONB NOT NULL,
	reason    TEXT NOT NULL,
	failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the schema if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

const insertIdeaSQL = `INSERT INTO ideas (
	name, industry, one_liner, description, target_audience, core_problem,
	opportunity_score, problem_score, feasibility_score, trending_score, total_score,
	demand_level, competition_level,
	pain_points, monetization_ideas, product_ideas, validation_signals, sources,
	featured_date, display_order, is_published, is_featured, generated_by, generation_prompt
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
	$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
) RETURNING id`

// InsertIdea writes a new idea row and returns the generated id.
func (s *PostgresStore) InsertIdea(ctx context.Context, idea *model.Idea) (string, error) {
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
		return "", eris.Wrap(err, "postgres: marshal sources")
	}

	var id string
	err = s.pool.QueryRow(ctx, insertIdeaSQL,
		idea.Name, idea.Industry, idea.OneLiner, idea.Description, idea.TargetAudience, idea.CoreProblem,
		idea.OpportunityScore, idea.ProblemScore, idea.FeasibilityScore, idea.TrendingScore, idea.TotalScore,
		string(idea.DemandLevel), string(idea.CompetitionLevel),
		painPoints, monetization, productIdeas, signals, sources,
		idea.FeaturedDate, idea.DisplayOrder, idea.IsPublished, idea.IsFeatured,
		idea.GeneratedBy, idea.GenerationPrompt,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert idea")
	}
	return id, nil
}

const selectIdeaCols = `id, name, industry, one_liner, description, target_audience, core_problem,
	opportunity_score, problem_score, feasibility_score, trending_score, total_score,
	demand_level, competition_level,
	pain_points, monetization_ideas, product_ideas, validation_signals, sources,
	featured_date, display_order, is_published, is_featured, generated_by, generation_prompt, created_at`

// GetIdeaByDate returns the idea featured on date, or (nil, nil) when absent.
func (s *PostgresStore) GetIdeaByDate(ctx context.Context, date time.Time) (*model.Idea, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectIdeaCols+` FROM ideas WHERE featured_date = $1`,
		date,
	)
	idea, err := scanIdea(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get idea by date")
	}
	return idea, nil
}

// ListIdeas returns recent ideas, newest featured date first.
func (s *PostgresStore) ListIdeas(ctx context.Context, limit, offset int) ([]model.Idea, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectIdeaCols+` FROM ideas ORDER BY featured_date DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ideas")
	}
	defer rows.Close()

	var out []model.Idea
	for rows.Next() {
		idea, scanErr := scanIdea(rows)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "postgres: scan idea")
		}
		out = append(out, *idea)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list ideas rows")
	}
	return out, nil
}

// EnqueueFailed dead-letters an idea whose strict insert failed.
func (s *PostgresStore) EnqueueFailed(ctx context.Context, idea *model.Idea, reason string) error {
	payload, err := json.Marshal(idea)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal failed idea")
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO failed_ideas (payload, reason) VALUES ($1, $2)`,
		payload, reason,
	); err != nil {
		return eris.Wrap(err, "postgres: enqueue failed idea")
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func jsonList(items []string) ([]byte, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal list")
	}
	return b, nil
}

func scanIdea(row pgx.Row) (*model.Idea, error) {
	var (
		idea         model.Idea
		demand       string
		competition  string
		painPoints   []byte
		monetization []byte
		productIdeas []byte
		signals      []byte
		sources      []byte
	)
	err := row.Scan(
		&idea.ID, &idea.Name, &idea.Industry, &idea.OneLiner, &idea.Description,
		&idea.TargetAudience, &idea.CoreProblem,
		&idea.OpportunityScore, &idea.ProblemScore, &idea.FeasibilityScore,
		&idea.TrendingScore, &idea.TotalScore,
		&demand, &competition,
		&painPoints, &monetization, &productIdeas, &signals, &sources,
		&idea.FeaturedDate, &idea.DisplayOrder, &idea.IsPublished, &idea.IsFeatured,
		&idea.GeneratedBy, &idea.GenerationPrompt, &idea.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	idea.DemandLevel = model.Level(demand)
	idea.CompetitionLevel = model.Level(competition)

	for _, pair := range []struct {
		raw []byte
		dst *[]string
	}{
		{painPoints, &idea.PainPoints},
		{monetization, &idea.MonetizationIdeas},
		{productIdeas, &idea.ProductIdeas},
		{signals, &idea.ValidationSignals},
	} {
		if len(pair.raw) > 0 {
			if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal list column")
			}
		}
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &idea.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sources")
		}
	}

	return &idea, nil
}
