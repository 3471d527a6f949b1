package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/models"
)

func execCtx() *models.ExecutionContext {
	return &models.ExecutionContext{
		Variables: map[string]any{"threshold": 50},
	}
}

func TestExecute_KeepsMatchingItems(t *testing.T) {
	t.Parallel()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{
		"collection": "leads",
		"expression": "item.score > 50",
	}, map[string]any{
		"leads": []any{
			map[string]any{"id": "a", "score": 80},
			map[string]any{"id": "b", "score": 20},
			map[string]any{"id": "c", "score": 51},
		},
		"batch": "2026-08",
	}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, result.Status)

	kept, ok := result.Output["leads"].([]any)
	require.True(t, ok)
	assert.Len(t, kept, 2)
	assert.Equal(t, 2, result.Output["matched_count"])
	assert.Equal(t, 1, result.Output["filtered_count"])

	// Unrelated input fields pass through.
	assert.Equal(t, "2026-08", result.Output["batch"])
}

func TestExecute_NonBooleanResultDropsItem(t *testing.T) {
	t.Parallel()

	block := &Block{}

	// The expression evaluates to the score itself, not a boolean. Truthy
	// non-bool values must not keep the item.
	result, err := block.Execute(t.Context(), map[string]any{
		"collection": "leads",
		"expression": "item.score",
	}, map[string]any{
		"leads": []any{
			map[string]any{"id": "a", "score": 80},
			map[string]any{"id": "b", "score": 0},
		},
	}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, 0, result.Output["matched_count"])
	assert.Equal(t, 2, result.Output["filtered_count"])
}

func TestExecute_VariablesAreBound(t *testing.T) {
	t.Parallel()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{
		"collection": "leads",
		"expression": "item.score > vars.threshold",
	}, map[string]any{
		"leads": []any{
			map[string]any{"id": "a", "score": 80},
			map[string]any{"id": "b", "score": 20},
		},
	}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Output["matched_count"])
}

func TestExecute_MissingCollectionFieldFails(t *testing.T) {
	t.Parallel()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{
		"collection": "leads",
		"expression": "item.score > 50",
	}, map[string]any{"leads": "not-a-collection"}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusFailed, result.Status)
}

func TestExecute_InvalidExpressionFails(t *testing.T) {
	t.Parallel()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{
		"collection": "leads",
		"expression": "item.score >",
	}, map[string]any{"leads": []any{}}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Message, "expression")
}

func TestExecute_MissingConfigFails(t *testing.T) {
	t.Parallel()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{}, map[string]any{}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusFailed, result.Status)
}
