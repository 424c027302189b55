package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/idea-pipeline/internal/model"
)

func TestBuildPromptWithoutResearch(t *testing.T) {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	prompt := BuildPrompt(date, nil)

	assert.Contains(t, prompt, "2026-03-14")
	assert.Contains(t, prompt, `"opportunity_score"`)
	assert.NotContains(t, prompt, "Recent market signals")
}

func TestBuildPromptInjectsResearch(t *testing.T) {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	prompt := BuildPrompt(date, []model.ResearchResult{
		{Title: "Compost startups raise funding", Snippet: "Investors pile in."},
		{Title: "Tool library waitlists grow"},
	})

	assert.Contains(t, prompt, "Recent market signals:")
	assert.Contains(t, prompt, "- Compost startups raise funding: Investors pile in.")
	assert.Contains(t, prompt, "- Tool library waitlists grow\n")
}
