package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/idea-pipeline/internal/model"
)

const ideaPrompt = `You are a market research analyst identifying a promising business opportunity.

Target date: %s
%s
Identify one specific, actionable business opportunity. Return a valid JSON object:
{
  "name": "<concise opportunity name>",
  "industry": "<industry label>",
  "one_liner": "<single-sentence pitch>",
  "description": "<2-3 paragraph description>",
  "target_audience": "<who this serves>",
  "core_problem": "<the problem being solved>",
  "opportunity_score": <0-10>,
  "problem_score": <0-10>,
  "feasibility_score": <0-10>,
  "trending_score": <0-10>,
  "demand_level": "<low|medium|high>",
  "competition_level": "<low|medium|high>",
  "pain_points": ["<pain point>", ...],
  "monetization_ideas": ["<revenue model>", ...],
  "product_ideas": ["<product concept>", ...],
  "validation_signals": ["<evidence of demand>", ...]
}`

// BuildPrompt assembles the generation prompt for a target date, injecting
// research context when available.
func BuildPrompt(date time.Time, research []model.ResearchResult) string {
	var ctx strings.Builder
	if len(research) > 0 {
		ctx.WriteString("\nRecent market signals:\n")
		for _, r := range research {
			ctx.WriteString("- " + r.Title)
			if r.Snippet != "" {
				ctx.WriteString(": " + r.Snippet)
			}
			ctx.WriteString("\n")
		}
	}

	return fmt.Sprintf(ideaPrompt, date.Format("2006-01-02"), ctx.String())
}
