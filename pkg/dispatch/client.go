// Package dispatch notifies the downstream delivery service when a new idea
// has been persisted. Queueing and delivery mechanics live on the other side
// of the webhook.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client enqueues downstream notifications for a persisted idea.
type Client interface {
	Dispatch(ctx context.Context, ideaID string) (int, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	webhookURL string
	http       *http.Client
}

// NewClient creates a dispatch client for the given webhook URL.
// An empty URL yields a no-op client.
func NewClient(webhookURL string, opts ...Option) Client {
	c := &httpClient{
		webhookURL: webhookURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type dispatchRequest struct {
	IdeaID string `json:"idea_id"`
}

type dispatchResponse struct {
	Queued int `json:"queued"`
}

func (c *httpClient) Dispatch(ctx context.Context, ideaID string) (int, error) {
	if c.webhookURL == "" {
		return 0, nil
	}

	body, err := json.Marshal(dispatchRequest{IdeaID: ideaID})
	if err != nil {
		return 0, eris.Wrap(err, "dispatch: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, eris.Wrap(err, "dispatch: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "dispatch: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, eris.Wrap(err, "dispatch: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, eris.Errorf("dispatch: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result dispatchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, eris.Wrap(err, "dispatch: unmarshal response")
	}

	return result.Queued, nil
}
