package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/execution"
	"github.com/leadflow/flowd/pkg/jobs"
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
	"github.com/leadflow/flowd/pkg/persistence/file"
	"github.com/leadflow/flowd/pkg/registry"
	"github.com/leadflow/flowd/pkg/web"
	"github.com/leadflow/flowd/pkg/workflow"
)

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterDefaultBlocks())

	processor := jobs.NewProcessor(logger)
	tracker := execution.NewTracker(store, processor, nil, logger)
	orchestrator := workflow.NewOrchestrator(reg, logger)
	runner := execution.NewRunner(store, reg, orchestrator, processor, tracker, logger)

	handlers := web.NewAPIHandlers(store, runner, tracker, processor, reg, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/validate", handlers.ValidateWorkflowBody)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/validate", handlers.ValidateWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)

	b := app.Group("/blocks")
	b.Get("/", handlers.GetBlocks)
	b.Get("/:type", handlers.GetBlock)
	b.Post("/:type/test", handlers.TestBlock)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/timeline", handlers.GetExecutionTimeline)
	e.Post("/:id/cancel", handlers.CancelExecution)

	j := app.Group("/jobs")
	j.Get("/stats", handlers.GetJobStats)
	j.Get("/:id", handlers.GetJob)

	app.Get("/health", handlers.HealthCheck)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any) *http.Response {
	t.Helper()

	var body []byte

	if payload != nil {
		if str, ok := payload.(string); ok {
			body = []byte(str)
		} else {
			marshaled, err := json.Marshal(payload)
			require.NoError(t, err)

			body = marshaled
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 0})
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, out))
}

func runnableWorkflow(t *testing.T, store persistence.Persistence) *models.WorkflowDefinition {
	t.Helper()

	def := &models.WorkflowDefinition{
		ID:     "wf-runnable",
		Name:   "Runnable Workflow",
		Status: models.WorkflowStatusActive,
		Owner:  "test-user",
		Nodes: []*models.WorkflowNode{
			{
				ID:     "fetch",
				Type:   "input.static",
				Config: map[string]any{"data": map[string]any{"lead": "acme"}},
			},
			{
				ID:   "tag",
				Type: "transform.template",
				Config: map[string]any{
					"expression": "enriched",
					"target":     "stage",
				},
			},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "fetch", Target: "tag"},
		},
	}

	require.NoError(t, store.WorkflowRepository().SaveWorkflow(t.Context(), def))

	return def
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		validateResult func(t *testing.T, resp *http.Response)
	}{
		{
			name: "successful creation",
			requestBody: web.CreateWorkflowRequest{
				Name:        "Test Workflow",
				Description: "Test Description",
				Owner:       "test-user",
				Variables:   map[string]any{"env": "test"},
			},
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, resp *http.Response) {
				t.Helper()

				var def models.WorkflowDefinition

				decodeBody(t, resp, &def)
				assert.Equal(t, "Test Workflow", def.Name)
				assert.Equal(t, "test-user", def.Owner)
				assert.Equal(t, models.WorkflowStatusDraft, def.Status)
				assert.Equal(t, "test", def.Variables["env"])
				assert.Empty(t, def.Nodes)
				assert.NotEmpty(t, def.ID)
			},
		},
		{
			name: "validation error - name too short",
			requestBody: web.CreateWorkflowRequest{
				Name:  "Te",
				Owner: "test-user",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - missing owner",
			requestBody: web.CreateWorkflowRequest{
				Name: "Test Workflow",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp := doJSON(t, app, http.MethodPost, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.validateResult != nil {
				tt.validateResult(t, resp)
			} else {
				_ = resp.Body.Close()
			}
		})
	}
}

func TestAPIHandlers_GetWorkflow_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/workflows/missing", nil)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_UpdateWorkflow_ActivatesDraft(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	def := runnableWorkflow(t, store)
	active := models.WorkflowStatusActive
	def.Status = models.WorkflowStatusDraft
	require.NoError(t, store.WorkflowRepository().SaveWorkflow(t.Context(), def))

	resp := doJSON(t, app, http.MethodPatch, "/workflows/"+def.ID, web.UpdateWorkflowRequest{Status: &active})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.WorkflowDefinition

	decodeBody(t, resp, &updated)
	assert.Equal(t, models.WorkflowStatusActive, updated.Status)
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	def := runnableWorkflow(t, store)

	resp := doJSON(t, app, http.MethodDelete, "/workflows/"+def.ID, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/workflows/"+def.ID, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_ValidateWorkflow(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	def := runnableWorkflow(t, store)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+def.ID+"/validate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Valid  bool `json:"valid"`
		Errors []struct {
			Kind string `json:"kind"`
		} `json:"errors"`
	}

	decodeBody(t, resp, &result)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestAPIHandlers_ValidateWorkflowBody_ReportsUnknownBlockType(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	def := models.WorkflowDefinition{
		ID:   "wf-draft",
		Name: "Draft",
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: "custom.unknown"},
		},
	}

	resp := doJSON(t, app, http.MethodPost, "/workflows/validate", def)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Valid  bool `json:"valid"`
		Errors []struct {
			Kind   string `json:"kind"`
			NodeID string `json:"node_id"`
		} `json:"errors"`
	}

	decodeBody(t, resp, &result)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "unknown_block_type", result.Errors[0].Kind)
	assert.Equal(t, "n1", result.Errors[0].NodeID)
}

func TestAPIHandlers_ExecuteWorkflow_Sync(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	def := runnableWorkflow(t, store)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+def.ID+"/execute", web.ExecuteWorkflowRequest{
		InputData: map[string]any{"source": "api"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		ExecutionID string         `json:"execution_id"`
		Status      string         `json:"status"`
		Output      map[string]any `json:"output"`
		NodeResults map[string]any `json:"node_results"`
	}

	decodeBody(t, resp, &result)
	assert.NotEmpty(t, result.ExecutionID)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "enriched", result.Output["stage"])
	assert.Len(t, result.NodeResults, 2)
}

func TestAPIHandlers_ExecuteWorkflow_Async(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	def := runnableWorkflow(t, store)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+def.ID+"/execute?async=true", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var submission execution.Submission

	decodeBody(t, resp, &submission)
	assert.NotEmpty(t, submission.JobID)
	assert.NotEmpty(t, submission.ExecutionID)

	resp = doJSON(t, app, http.MethodGet, "/jobs/"+submission.JobID, nil)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIHandlers_ExecuteWorkflow_Inactive(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	def := runnableWorkflow(t, store)
	def.Status = models.WorkflowStatusDraft
	require.NoError(t, store.WorkflowRepository().SaveWorkflow(t.Context(), def))

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+def.ID+"/execute", nil)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_GetBlocks(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/blocks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var blocks []models.BlockMetadata

	decodeBody(t, resp, &blocks)
	assert.NotEmpty(t, blocks)

	types := make([]string, 0, len(blocks))
	for _, block := range blocks {
		types = append(types, block.Type)
	}

	assert.Contains(t, types, "input.static")
	assert.Contains(t, types, "transform.template")
}

func TestAPIHandlers_GetBlock_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/blocks/custom.unknown", nil)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_TestBlock(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/blocks/input.static/test", web.TestBlockRequest{
		Config: map[string]any{"data": map[string]any{"x": float64(1)}},
		Input:  map[string]any{"y": float64(2)},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.NodeExecutionResult

	decodeBody(t, resp, &result)
	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, float64(1), result.Output["x"])
	assert.Equal(t, float64(2), result.Output["y"])
}

func TestAPIHandlers_TestBlock_UnknownType(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/blocks/custom.unknown/test", web.TestBlockRequest{})

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_ExecutionEndpoints(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	def := runnableWorkflow(t, store)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+def.ID+"/execute", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run struct {
		ExecutionID string `json:"execution_id"`
	}

	decodeBody(t, resp, &run)
	require.NotEmpty(t, run.ExecutionID)

	resp = doJSON(t, app, http.MethodGet, "/executions/"+run.ExecutionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail struct {
		Execution   models.WorkflowExecution     `json:"execution"`
		NodeResults []models.NodeExecutionResult `json:"node_results"`
	}

	decodeBody(t, resp, &detail)
	assert.Equal(t, models.ExecutionStatusCompleted, detail.Execution.Status)
	assert.InDelta(t, 100.0, detail.Execution.ProgressPercentage, 0.01)
	assert.Len(t, detail.NodeResults, 2)

	resp = doJSON(t, app, http.MethodGet, "/executions/"+run.ExecutionID+"/timeline", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var timeline struct {
		Timeline []models.TimelineEvent `json:"timeline"`
	}

	decodeBody(t, resp, &timeline)
	assert.GreaterOrEqual(t, len(timeline.Timeline), 2)

	// A finished execution can no longer be cancelled.
	resp = doJSON(t, app, http.MethodPost, "/executions/"+run.ExecutionID+"/cancel", nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_GetExecution_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/executions/missing", nil)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}

	decodeBody(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
}
