package httpfetch

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/models"
)

func execCtx() *models.ExecutionContext {
	return &models.ExecutionContext{
		Variables: map[string]any{"tenant": "acme"},
	}
}

func TestExecute_DecodesJSONResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lead": "acme", "score": 80}`))
	}))
	defer server.Close()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{
		"url": server.URL,
	}, map[string]any{}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, "acme", result.Output["lead"])
	assert.Equal(t, float64(80), result.Output["score"])
	assert.Equal(t, http.StatusOK, result.Output["status_code"])
}

func TestExecute_NonJSONBodyIsRaw(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer server.Close()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{"url": server.URL}, map[string]any{}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, "plain text", result.Output["body"])
}

func TestExecute_TemplatedURLAndHeaders(t *testing.T) {
	t.Parallel()

	var gotPath, gotHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Tenant")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{
		"url": server.URL + "/leads/{{.input.lead_id}}",
		"headers": map[string]any{
			"X-Tenant": "{{.vars.tenant}}",
		},
	}, map[string]any{"lead_id": "42"}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, "/leads/42", gotPath)
	assert.Equal(t, "acme", gotHeader)
}

func TestExecute_ErrorStatusFailsWithOutput(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{"url": server.URL}, map[string]any{}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, http.StatusBadGateway, result.Output["status_code"])
}

func TestExecute_MissingURLFails(t *testing.T) {
	t.Parallel()

	block := &Block{}

	result, err := block.Execute(t.Context(), map[string]any{}, map[string]any{}, execCtx())

	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusFailed, result.Status)
}
