package gen

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/idea-pipeline/internal/model"
	"github.com/sells-group/idea-pipeline/pkg/anthropic"
	"github.com/sells-group/idea-pipeline/pkg/perplexity"
)

// TextGenerator is a single text-generation backend. Implementations return
// the completion text or an error; quota/transient classification happens via
// the resilience error types or message inspection.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Candidate pairs a configured backend candidate with its generator and an
// optional request pacer.
type Candidate struct {
	model.BackendCandidate
	Gen     TextGenerator
	limiter *rate.Limiter
}

// BackendDeps holds the API clients candidates are built from.
type BackendDeps struct {
	Anthropic  anthropic.Client
	Perplexity perplexity.Client
}

// LoadCandidates reads the ordered backend candidate list from a YAML file.
// The file has a top-level "candidates" key.
func LoadCandidates(path string) ([]model.BackendCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gen: read candidates %s", path)
	}

	var wrapper struct {
		Candidates []model.BackendCandidate `yaml:"candidates"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "gen: parse candidates")
	}
	if len(wrapper.Candidates) == 0 {
		return nil, eris.New("gen: candidates file is empty")
	}

	return wrapper.Candidates, nil
}

// BuildCandidates wires configured candidates to their backend clients.
// Ordering is preserved: it defines fallback priority. requestsPerMinute <= 0
// disables pacing.
func BuildCandidates(list []model.BackendCandidate, deps BackendDeps, requestsPerMinute float64) ([]Candidate, error) {
	out := make([]Candidate, 0, len(list))
	for _, bc := range list {
		var g TextGenerator
		switch bc.Backend {
		case "anthropic":
			if deps.Anthropic == nil {
				return nil, eris.Errorf("gen: candidate %q needs an anthropic client", bc.Label)
			}
			g = &anthropicBackend{client: deps.Anthropic, model: bc.Model}
		case "perplexity":
			if deps.Perplexity == nil {
				return nil, eris.Errorf("gen: candidate %q needs a perplexity client", bc.Label)
			}
			g = &perplexityBackend{client: deps.Perplexity, model: bc.Model}
		default:
			return nil, eris.Errorf("gen: unknown backend %q for candidate %q", bc.Backend, bc.Label)
		}

		c := Candidate{BackendCandidate: bc, Gen: g}
		if requestsPerMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), 1)
		}
		out = append(out, c)
	}
	return out, nil
}

type anthropicBackend struct {
	client anthropic.Client
	model  string
}

func (b *anthropicBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.model,
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(b.model, "generate")

	text := resp.Text()
	if text == "" {
		return "", eris.New("anthropic: empty completion")
	}
	return text, nil
}

type perplexityBackend struct {
	client perplexity.Client
	model  string
}

func (b *perplexityBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := b.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:     b.model,
		Messages:  []perplexity.Message{{Role: "user", Content: prompt}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", eris.New("perplexity: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
