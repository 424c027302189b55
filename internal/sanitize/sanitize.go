// Package sanitize normalizes a recovered generation record into the persisted
// idea shape. Everything here is pure and deterministic: the same record and
// context always produce the same output, which keeps retries idempotent.
package sanitize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/idea-pipeline/internal/model"
)

var titleCaser = cases.Title(language.English)

// Context carries the per-run inputs that do not come from the model output.
type Context struct {
	FeaturedDate time.Time
	GeneratedBy  string
	Prompt       string
	Sources      []model.ResearchResult
}

// Idea coerces a recovered record into a normalized Idea. Unknown keys are
// ignored; missing keys fall back to typed defaults.
func Idea(rec map[string]any, sctx Context) model.Idea {
	idea := model.Idea{
		Name:           truncate(Str(field(rec, "name")), model.MaxNameLen),
		Industry:       industry(Str(field(rec, "industry"))),
		OneLiner:       Str(field(rec, "one_liner")),
		Description:    Str(field(rec, "description")),
		TargetAudience: Str(field(rec, "target_audience")),
		CoreProblem:    Str(field(rec, "core_problem")),

		OpportunityScore: Score(field(rec, "opportunity_score")),
		ProblemScore:     Score(field(rec, "problem_score")),
		FeasibilityScore: Score(field(rec, "feasibility_score")),
		TrendingScore:    Score(field(rec, "trending_score")),

		DemandLevel:      LevelOf(field(rec, "demand_level")),
		CompetitionLevel: LevelOf(field(rec, "competition_level")),

		PainPoints:        StringList(field(rec, "pain_points")),
		MonetizationIdeas: StringList(field(rec, "monetization_ideas")),
		ProductIdeas:      StringList(field(rec, "product_ideas")),
		ValidationSignals: StringList(field(rec, "validation_signals")),

		Sources: sourcesFrom(sctx.Sources),

		FeaturedDate:     sctx.FeaturedDate,
		IsPublished:      true,
		IsFeatured:       true,
		GeneratedBy:      sctx.GeneratedBy,
		GenerationPrompt: sctx.Prompt,
	}

	idea.TotalScore = totalScore(idea.Name, idea.OpportunityScore, idea.ProblemScore, idea.FeasibilityScore)

	return idea
}

// field looks a key up by its snake_case name, falling back to the camelCase
// spelling models sometimes emit.
func field(rec map[string]any, key string) any {
	if v, ok := rec[key]; ok {
		return v
	}
	if v, ok := rec[toCamel(key)]; ok {
		return v
	}
	return nil
}

func toCamel(key string) string {
	parts := strings.Split(key, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// Str coerces a scalar to a trimmed string. Non-scalars yield "".
func Str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// industry normalizes casing of the industry label.
func industry(s string) string {
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}

// Score coerces a numeric or numeric-bearing value to a score clamped to
// [0,10] and rounded to one decimal. Non-numeric input yields nil, never 0:
// an absent score and a zero score mean different things downstream.
func Score(v any) *float64 {
	switch t := v.(type) {
	case float64:
		f := clampRound(t)
		return &f
	case string:
		if n, ok := firstNumber(t); ok {
			f := clampRound(n)
			return &f
		}
		return nil
	default:
		return nil
	}
}

// firstNumber extracts the first decimal number from text like "8.7 out of 10".
func firstNumber(s string) (float64, bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '-' && (c < '0' || c > '9') {
			continue
		}
		j := i
		if s[j] == '-' {
			j++
		}
		dot := false
		for j < len(s) && (s[j] == '.' && !dot || s[j] >= '0' && s[j] <= '9') {
			if s[j] == '.' {
				dot = true
			}
			j++
		}
		if n, err := strconv.ParseFloat(strings.TrimSuffix(s[i:j], "."), 64); err == nil {
			return n, true
		}
		i = j
	}
	return 0, false
}

func clampRound(f float64) float64 {
	if f < 0 {
		f = 0
	}
	if f > 10 {
		f = 10
	}
	return round1(f)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// LevelOf normalizes a categorical rating; anything unrecognized is medium.
func LevelOf(v any) model.Level {
	switch strings.ToLower(Str(v)) {
	case "low":
		return model.LevelLow
	case "high":
		return model.LevelHigh
	case "medium", "moderate", "mid":
		return model.LevelMedium
	default:
		return model.LevelMedium
	}
}

// StringList coerces a value to a string sequence, wrapping bare scalars.
// Object elements are flattened to their JSON encoding so nothing is lost.
func StringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := itemString(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := itemString(v); s != "" {
			return []string{s}
		}
		return []string{}
	}
}

func itemString(v any) string {
	switch t := v.(type) {
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	case []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return Str(t)
	}
}

func sourcesFrom(results []model.ResearchResult) []model.Source {
	out := make([]model.Source, 0, len(results))
	for _, r := range results {
		if r.Link == "" && r.Title == "" {
			continue
		}
		out = append(out, model.Source{Title: r.Title, Link: r.Link})
		if len(out) == model.MaxSources {
			break
		}
	}
	return out
}

// totalScore is the mean of the non-nil component scores, rounded to one
// decimal. When all three components are present and identical, a
// deterministic jitter of ±0.4 in 0.1 steps breaks the tie so consecutive
// ideas don't all land on the same total. The jitter is a pure function of
// the idea name.
func totalScore(name string, opp, prob, feas *float64) *float64 {
	var comps []float64
	for _, s := range []*float64{opp, prob, feas} {
		if s != nil {
			comps = append(comps, *s)
		}
	}
	if len(comps) == 0 {
		return nil
	}

	sum := 0.0
	for _, c := range comps {
		sum += c
	}
	mean := round1(sum / float64(len(comps)))

	if len(comps) == 3 && comps[0] == comps[1] && comps[1] == comps[2] {
		mean = clampRound(mean + Jitter(name))
	}

	return &mean
}

// Jitter derives the tie-breaking perturbation from the name: the sum of its
// character codes mod 9, shifted to center on zero, in 0.1 steps.
func Jitter(name string) float64 {
	sum := 0
	for _, r := range name {
		sum += int(r)
	}
	return float64(sum%9-4) / 10.0
}
