package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/idea-pipeline/internal/model"
	"github.com/sells-group/idea-pipeline/pkg/websearch"
)

// Researcher gathers market context for the generation prompt. Lookups run in
// parallel and results are a flat, order-independent collection. Missing
// results are never a failure: the prompt just leans on background knowledge.
type Researcher struct {
	search  websearch.Client
	queries []string
}

// NewResearcher creates a researcher over the configured query templates.
// Each template may contain one %s, filled with the target month and year.
func NewResearcher(search websearch.Client, queries []string) *Researcher {
	return &Researcher{search: search, queries: queries}
}

// Gather runs all research lookups for the target date and returns the
// combined hits.
func (r *Researcher) Gather(ctx context.Context, date time.Time) []model.ResearchResult {
	if r.search == nil || len(r.queries) == 0 {
		return nil
	}

	period := date.Format("January 2006")

	var mu sync.Mutex
	var results []model.ResearchResult

	g, gCtx := errgroup.WithContext(ctx)
	for _, tmpl := range r.queries {
		query := tmpl
		if strings.Contains(tmpl, "%s") {
			query = fmt.Sprintf(tmpl, period)
		}
		g.Go(func() error {
			hits, err := r.search.Search(gCtx, query)
			if err != nil {
				// Research failures are non-fatal.
				zap.L().Warn("research: lookup failed",
					zap.String("query", query),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			for _, h := range hits {
				results = append(results, model.ResearchResult{
					Title:   h.Title,
					Snippet: h.Snippet,
					Link:    h.Link,
				})
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("research: gathered context",
		zap.Int("queries", len(r.queries)),
		zap.Int("results", len(results)),
	)
	return results
}
