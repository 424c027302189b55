package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-pipeline/internal/resilience"
)

func newTestServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatCompletion(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, ChatCompletionResponse{
		ID: "cmpl-1",
		Choices: []Choice{
			{Index: 0, Message: Message{Role: "assistant", Content: `{"name":"x"}`}},
		},
	})
	c := NewClient("test-key", WithBaseURL(srv.URL))

	resp, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "prompt"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, `{"name":"x"}`, resp.Choices[0].Message.Content)
}

func TestChatCompletionAppliesDefaultModel(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{})
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", WithBaseURL(srv.URL), WithModel("sonar"))
	_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "sonar", gotModel)
}

func TestChatCompletionRateLimited(t *testing.T) {
	srv := newTestServer(t, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)
	assert.True(t, resilience.IsQuotaSignal(err), "429 must classify as a quota signal")
	assert.False(t, resilience.IsTransient(err))
}

func TestChatCompletionServerError(t *testing.T) {
	srv := newTestServer(t, http.StatusServiceUnavailable, map[string]string{"error": "overloaded"})
	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err), "503 must classify as transient")
}

func TestChatCompletionClientError(t *testing.T) {
	srv := newTestServer(t, http.StatusBadRequest, map[string]string{"error": "bad request"})
	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.False(t, resilience.IsQuotaSignal(err))
}
