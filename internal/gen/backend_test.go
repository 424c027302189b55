package gen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCandidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
candidates:
  - label: claude-sonnet
    backend: anthropic
    model: claude-sonnet-4-5-20250929
    token_budget: 8192
  - label: sonar-pro
    backend: perplexity
    model: sonar-pro
    token_budget: 4096
`), 0o600))

	got, err := LoadCandidates(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "claude-sonnet", got[0].Label)
	assert.Equal(t, "anthropic", got[0].Backend)
	assert.Equal(t, 8192, got[0].TokenBudget)
	assert.Equal(t, "perplexity", got[1].Backend)
}

func TestLoadCandidatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("candidates: []\n"), 0o600))

	_, err := LoadCandidates(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadCandidatesMissingFile(t *testing.T) {
	_, err := LoadCandidates(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
