package filewrite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/models"
)

func TestExecute_WritesInputAsJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "result.json")
	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{
		"path": path,
	}, map[string]any{"lead": "acme", "score": 80}, &models.ExecutionContext{})

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, path, result.Output["path"])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(raw), result.Output["bytes_written"])

	var decoded map[string]any

	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "acme", decoded["lead"])
}

func TestExecute_PrettyOutputIsIndented(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pretty.json")
	block := &Block{}

	_, err := block.Execute(t.Context(), map[string]any{
		"path":   path,
		"pretty": true,
	}, map[string]any{"lead": "acme"}, &models.ExecutionContext{})

	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"lead\"")
}

func TestExecute_TemplatedPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{
		"path": dir + "/{{.input.name}}.json",
	}, map[string]any{"name": "report"}, &models.ExecutionContext{})

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.FileExists(t, filepath.Join(dir, "report.json"))
}

func TestExecute_MissingPathFails(t *testing.T) {
	t.Parallel()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{}, map[string]any{}, &models.ExecutionContext{})

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusFailed, result.Status)
}
