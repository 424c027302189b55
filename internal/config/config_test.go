package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Run from a directory with no config.yaml so only defaults apply.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "X-Scheduler-Job", cfg.Server.SchedulerHeader)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://api.perplexity.ai", cfg.Perplexity.BaseURL)
	assert.Len(t, cfg.Generation.ResearchQueries, 3)

	require.NotEmpty(t, cfg.Generation.Candidates, "candidate list falls back to the default cascade")
	assert.Equal(t, "claude-sonnet", cfg.Generation.Candidates[0].Label)
	assert.Equal(t, "perplexity", cfg.Generation.Candidates[len(cfg.Generation.Candidates)-1].Backend)
}

func TestLoadConfigFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/config.yaml", []byte(`
store:
  driver: sqlite
  database_url: ideas.db
server:
  port: 9191
  secret: hunter2
generation:
  requests_per_minute: 12
  candidates:
    - label: only-sonar
      backend: perplexity
      model: sonar-pro
      token_budget: 2048
`), 0o600))
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "ideas.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Server.Secret)
	assert.Equal(t, 12.0, cfg.Generation.RequestsPerMinute)
	require.Len(t, cfg.Generation.Candidates, 1)
	assert.Equal(t, "only-sonar", cfg.Generation.Candidates[0].Label)
	assert.Equal(t, 2048, cfg.Generation.Candidates[0].TokenBudget)
}

func TestDefaultCandidatesOrder(t *testing.T) {
	cands := DefaultCandidates()
	require.Len(t, cands, 3)
	assert.Equal(t, "anthropic", cands[0].Backend)
	assert.Equal(t, "anthropic", cands[1].Backend)
	assert.Equal(t, "perplexity", cands[2].Backend, "the cheapest external fallback comes last")
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "verbose", Format: "json"})
	require.Error(t, err)
}
