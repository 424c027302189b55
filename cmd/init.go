package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-pipeline/internal/gen"
	"github.com/sells-group/idea-pipeline/internal/model"
	"github.com/sells-group/idea-pipeline/internal/pipeline"
	"github.com/sells-group/idea-pipeline/internal/store"
	"github.com/sells-group/idea-pipeline/pkg/anthropic"
	"github.com/sells-group/idea-pipeline/pkg/dispatch"
	"github.com/sells-group/idea-pipeline/pkg/perplexity"
	"github.com/sells-group/idea-pipeline/pkg/websearch"
)

// pipelineEnv bundles the wired pipeline and its closeable resources.
type pipelineEnv struct {
	Store      store.Store
	Driver     *pipeline.Driver
	Candidates []model.BackendCandidate
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	candidates := cfg.Generation.Candidates
	if cfg.Generation.CandidatesFile != "" {
		candidates, err = gen.LoadCandidates(cfg.Generation.CandidatesFile)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	deps := gen.BackendDeps{
		Anthropic:  anthropic.NewClient(cfg.Anthropic.Key),
		Perplexity: perplexity.NewClient(cfg.Perplexity.Key, perplexity.WithBaseURL(cfg.Perplexity.BaseURL), perplexity.WithModel(cfg.Perplexity.Model)),
	}
	built, err := gen.BuildCandidates(candidates, deps, cfg.Generation.RequestsPerMinute)
	if err != nil {
		st.Close()
		return nil, err
	}

	var search websearch.Client
	if cfg.Search.Key != "" {
		search = websearch.NewClient(cfg.Search.Key, cfg.Search.EngineID)
	}

	driver := pipeline.NewDriver(
		st,
		pipeline.NewResearcher(search, cfg.Generation.ResearchQueries),
		gen.NewOrchestrator(built),
		dispatch.NewClient(cfg.Dispatch.WebhookURL),
	)

	return &pipelineEnv{Store: st, Driver: driver, Candidates: candidates}, nil
}

// candidateLabels is used in startup logging.
func candidateLabels(list []model.BackendCandidate) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Label
	}
	return out
}
