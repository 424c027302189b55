package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req dispatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "idea-123", req.IdeaID)

		_ = json.NewEncoder(w).Encode(dispatchResponse{Queued: 42})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL)
	queued, err := c.Dispatch(context.Background(), "idea-123")
	require.NoError(t, err)
	assert.Equal(t, 42, queued)
}

func TestDispatchNoopWithoutURL(t *testing.T) {
	c := NewClient("")
	queued, err := c.Dispatch(context.Background(), "idea-123")
	require.NoError(t, err)
	assert.Equal(t, 0, queued)
}

func TestDispatchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "delivery service down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL)
	_, err := c.Dispatch(context.Background(), "idea-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
