// Package model defines the domain types shared across the generation
// pipeline.
package model

import "time"

// MaxNameLen caps the persisted idea name length.
const MaxNameLen = 4000

// MaxSources caps the research sources attached to an idea.
const MaxSources = 10

// Level is a categorical low/medium/high rating.
type Level string

// Level values.
const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// BackendCandidate is one entry in the ordered generation fallback list.
type BackendCandidate struct {
	// Label identifies the candidate in logs and in the persisted
	// generated_by column.
	Label string `yaml:"label" mapstructure:"label"`
	// Backend selects the client implementation ("anthropic", "perplexity").
	Backend string `yaml:"backend" mapstructure:"backend"`
	// Model is the backend-specific model identifier.
	Model string `yaml:"model" mapstructure:"model"`
	// TokenBudget is the max output tokens requested from this candidate.
	TokenBudget int `yaml:"token_budget" mapstructure:"token_budget"`
}

// RawCompletion is the unparsed output of a successful generation, tagged
// with the candidate that produced it.
type RawCompletion struct {
	Text    string
	Backend string
}

// Source is a research citation attached to a persisted idea.
type Source struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// ResearchResult is a single hit from the research phase.
type ResearchResult struct {
	Title   string
	Snippet string
	Link    string
}

// Idea is the persisted opportunity record. Score pointers distinguish an
// absent score from a zero score.
type Idea struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Industry       string `json:"industry"`
	OneLiner       string `json:"one_liner"`
	Description    string `json:"description"`
	TargetAudience string `json:"target_audience"`
	CoreProblem    string `json:"core_problem"`

	OpportunityScore *float64 `json:"opportunity_score"`
	ProblemScore     *float64 `json:"problem_score"`
	FeasibilityScore *float64 `json:"feasibility_score"`
	TrendingScore    *float64 `json:"trending_score"`
	TotalScore       *float64 `json:"total_score"`

	DemandLevel      Level `json:"demand_level"`
	CompetitionLevel Level `json:"competition_level"`

	PainPoints        []string `json:"pain_points"`
	MonetizationIdeas []string `json:"monetization_ideas"`
	ProductIdeas      []string `json:"product_ideas"`
	ValidationSignals []string `json:"validation_signals"`

	Sources []Source `json:"sources"`

	FeaturedDate     time.Time `json:"featured_date"`
	DisplayOrder     int       `json:"display_order"`
	IsPublished      bool      `json:"is_published"`
	IsFeatured       bool      `json:"is_featured"`
	GeneratedBy      string    `json:"generated_by"`
	GenerationPrompt string    `json:"generation_prompt"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}
