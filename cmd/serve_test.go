package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/idea-pipeline/internal/config"
	"github.com/sells-group/idea-pipeline/internal/pipeline"
)

func authProbe(t *testing.T, sc config.ServerConfig, mutate func(*http.Request)) int {
	t.Helper()
	handler := jobAuth(sc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/jobs/daily-idea", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestJobAuthOpenWhenUnconfigured(t *testing.T) {
	code := authProbe(t, config.ServerConfig{}, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestJobAuthSchedulerHeader(t *testing.T) {
	sc := config.ServerConfig{SchedulerHeader: "X-Scheduler-Job"}

	assert.Equal(t, http.StatusUnauthorized, authProbe(t, sc, nil))
	assert.Equal(t, http.StatusOK, authProbe(t, sc, func(r *http.Request) {
		r.Header.Set("X-Scheduler-Job", "daily-idea")
	}))
}

func TestJobAuthBearerSecret(t *testing.T) {
	sc := config.ServerConfig{Secret: "hunter2"}

	assert.Equal(t, http.StatusUnauthorized, authProbe(t, sc, nil))
	assert.Equal(t, http.StatusUnauthorized, authProbe(t, sc, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer wrong")
	}))
	assert.Equal(t, http.StatusUnauthorized, authProbe(t, sc, func(r *http.Request) {
		r.Header.Set("Authorization", "hunter2")
	}), "token without the Bearer scheme is rejected")
	assert.Equal(t, http.StatusOK, authProbe(t, sc, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer hunter2")
	}))
}

func TestJobAuthEitherCredentialPasses(t *testing.T) {
	sc := config.ServerConfig{SchedulerHeader: "X-Scheduler-Job", Secret: "hunter2"}

	assert.Equal(t, http.StatusOK, authProbe(t, sc, func(r *http.Request) {
		r.Header.Set("X-Scheduler-Job", "1")
	}))
	assert.Equal(t, http.StatusOK, authProbe(t, sc, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer hunter2")
	}))
	assert.Equal(t, http.StatusUnauthorized, authProbe(t, sc, nil))
}

func TestJobErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			"already generated",
			&pipeline.StageError{Stage: pipeline.StageCheckExisting, Err: pipeline.ErrAlreadyExists},
			http.StatusConflict, "already_generated",
		},
		{
			"generation exhausted",
			&pipeline.StageError{Stage: pipeline.StageGenerate, Err: eris.New("all candidates exhausted")},
			http.StatusBadGateway, "generation_failed",
		},
		{
			"recovery failed",
			&pipeline.StageError{Stage: pipeline.StageRecover, Err: eris.New("no structure")},
			http.StatusBadGateway, "generation_failed",
		},
		{
			"persist failed",
			&pipeline.StageError{Stage: pipeline.StagePersist, Err: eris.New("disk full")},
			http.StatusInternalServerError, "pipeline_failed",
		},
		{
			"unclassified",
			eris.New("boom"),
			http.StatusInternalServerError, "pipeline_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := jobError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}
