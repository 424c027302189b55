package gen

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-pipeline/internal/model"
	"github.com/sells-group/idea-pipeline/internal/resilience"
	"github.com/sells-group/idea-pipeline/pkg/perplexity"
)

type stubPerplexity struct{}

func (stubPerplexity) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	return &perplexity.ChatCompletionResponse{}, nil
}

type fakeGen struct {
	calls  int
	script func(call int) (string, error)
}

func (f *fakeGen) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.calls++
	return f.script(f.calls)
}

func always(text string, err error) func(int) (string, error) {
	return func(int) (string, error) { return text, err }
}

func candidate(label string, g TextGenerator) Candidate {
	return Candidate{
		BackendCandidate: model.BackendCandidate{Label: label, Backend: "anthropic", Model: "m", TokenBudget: 1024},
		Gen:              g,
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestGenerateFirstCandidateSucceeds(t *testing.T) {
	a := &fakeGen{script: always(`{"name":"x"}`, nil)}
	b := &fakeGen{script: always("", eris.New("should not be called"))}

	o := NewOrchestrator([]Candidate{candidate("a", a), candidate("b", b)}).WithRetryConfig(fastRetry())
	out, err := o.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, `{"name":"x"}`, out.Text)
	assert.Equal(t, "a", out.Backend)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls, "later candidates are untouched on success")
}

func TestGenerateQuotaAdvancesWithoutRetry(t *testing.T) {
	a := &fakeGen{script: always("", resilience.NewQuotaError(eris.New("daily quota spent"), 429))}
	b := &fakeGen{script: always(`{"ok":true}`, nil)}
	c := &fakeGen{script: always("", eris.New("unreachable"))}

	o := NewOrchestrator([]Candidate{candidate("a", a), candidate("b", b), candidate("c", c)}).WithRetryConfig(fastRetry())
	out, err := o.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "b", out.Backend)
	assert.Equal(t, 1, a.calls, "quota must abandon the candidate after a single attempt")
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 0, c.calls)
}

func TestGenerateQuotaPhraseAdvances(t *testing.T) {
	// No structured error type: classification falls back to the message.
	a := &fakeGen{script: always("", eris.New("429 Too Many Requests"))}
	b := &fakeGen{script: always("fallback text", nil)}

	o := NewOrchestrator([]Candidate{candidate("a", a), candidate("b", b)}).WithRetryConfig(fastRetry())
	out, err := o.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "b", out.Backend)
	assert.Equal(t, 1, a.calls)
}

func TestGenerateTransientRetriesSameCandidate(t *testing.T) {
	a := &fakeGen{script: func(call int) (string, error) {
		if call < 3 {
			return "", resilience.NewTransientError(eris.New("bad gateway"), 502)
		}
		return "recovered", nil
	}}

	o := NewOrchestrator([]Candidate{candidate("a", a)}).WithRetryConfig(fastRetry())
	out, err := o.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "recovered", out.Text)
	assert.Equal(t, 3, a.calls)
}

func TestGenerateExhaustedCandidateFallsThrough(t *testing.T) {
	a := &fakeGen{script: always("", resilience.NewTransientError(eris.New("down"), 503))}
	b := &fakeGen{script: always("plan b", nil)}

	o := NewOrchestrator([]Candidate{candidate("a", a), candidate("b", b)}).WithRetryConfig(fastRetry())
	out, err := o.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "plan b", out.Text)
	assert.Equal(t, 3, a.calls, "transient failures use every attempt before falling through")
	assert.Equal(t, 1, b.calls)
}

func TestGenerateAllExhausted(t *testing.T) {
	lastErr := resilience.NewQuotaError(eris.New("quota"), 429)
	a := &fakeGen{script: always("", resilience.NewTransientError(eris.New("down"), 500))}
	b := &fakeGen{script: always("", lastErr)}

	o := NewOrchestrator([]Candidate{candidate("a", a), candidate("b", b)}).WithRetryConfig(fastRetry())
	out, err := o.Generate(context.Background(), "prompt")

	require.Nil(t, out)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.ErrorIs(t, err, lastErr, "the last candidate's failure is preserved")
}

func TestGenerateContextCancelStopsCascade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeGen{script: func(int) (string, error) {
		cancel()
		return "", resilience.NewTransientError(eris.New("down"), 500)
	}}
	b := &fakeGen{script: always("never", nil)}

	o := NewOrchestrator([]Candidate{candidate("a", a), candidate("b", b)}).WithRetryConfig(fastRetry())
	_, err := o.Generate(ctx, "prompt")

	require.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls, "cancellation must not advance to later candidates")
}

func TestBuildCandidatesUnknownBackend(t *testing.T) {
	_, err := BuildCandidates(
		[]model.BackendCandidate{{Label: "x", Backend: "carrier-pigeon"}},
		BackendDeps{},
		0,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestBuildCandidatesPreservesOrder(t *testing.T) {
	list := []model.BackendCandidate{
		{Label: "first", Backend: "perplexity", Model: "sonar-pro", TokenBudget: 4096},
		{Label: "second", Backend: "perplexity", Model: "sonar", TokenBudget: 2048},
	}
	built, err := BuildCandidates(list, BackendDeps{Perplexity: stubPerplexity{}}, 30)

	require.NoError(t, err)
	require.Len(t, built, 2)
	assert.Equal(t, "first", built[0].Label)
	assert.Equal(t, "second", built[1].Label)
	assert.NotNil(t, built[0].limiter, "requests_per_minute > 0 enables pacing")
}
