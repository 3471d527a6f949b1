package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/leadflow/flowd/pkg/execution"
	"github.com/leadflow/flowd/pkg/jobs"
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
	"github.com/leadflow/flowd/pkg/registry"
	"github.com/leadflow/flowd/pkg/validation"
)

const defaultBlockTestTimeout = 30 * time.Second

type APIHandlers struct {
	store     persistence.Persistence
	runner    *execution.Runner
	tracker   *execution.Tracker
	processor *jobs.Processor
	registry  *registry.Registry
	validator *validator.Validate
}

func NewAPIHandlers(
	store persistence.Persistence,
	runner *execution.Runner,
	tracker *execution.Tracker,
	processor *jobs.Processor,
	reg *registry.Registry,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		store:     store,
		runner:    runner,
		tracker:   tracker,
		processor: processor,
		registry:  reg,
		validator: validate,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	opts, err := h.parseListWorkflowsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.store.WorkflowRepository().ListWorkflows(c.Context(), *opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    opts.SortBy,
			"sort_order": opts.SortOrder,
		},
	})
}

// parseListWorkflowsOptions parses and validates query parameters for listing workflows.
func (h *APIHandlers) parseListWorkflowsOptions(c fiber.Ctx) (*persistence.ListWorkflowsOptions, error) {
	opts := &persistence.ListWorkflowsOptions{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	opts.OwnerID = c.Query("owner_id")

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		opts.Status = &status
	}

	opts.SortBy = c.Query("sort_by")
	opts.SortOrder = c.Query("sort_order")

	return opts, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.store.WorkflowRepository().WorkflowByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	status := models.WorkflowStatusDraft
	if req.Status != nil {
		status = *req.Status
	}

	workflow := &models.WorkflowDefinition{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Version:     1,
		Status:      status,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Variables:   req.Variables,
		Metadata:    req.Metadata,
		Owner:       req.Owner,
	}

	if workflow.Nodes == nil {
		workflow.Nodes = []*models.WorkflowNode{}
	}

	if workflow.Edges == nil {
		workflow.Edges = []*models.Edge{}
	}

	if err := h.store.WorkflowRepository().SaveWorkflow(c.Context(), workflow); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	repo := h.store.WorkflowRepository()

	existing, err := repo.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Status != nil {
		existing.Status = *req.Status
	}

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
		existing.Version++
	}

	if req.Edges != nil {
		existing.Edges = req.Edges
	}

	if req.Variables != nil {
		existing.Variables = req.Variables
	}

	if req.Metadata != nil {
		existing.Metadata = req.Metadata
	}

	if err := repo.SaveWorkflow(c.Context(), existing); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.store.WorkflowRepository().DeleteWorkflow(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateWorkflow runs static validation against a stored workflow.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.store.WorkflowRepository().WorkflowByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(h.validateDefinition(workflow))
}

// ValidateWorkflowBody runs static validation against an unstored definition,
// so editors can check a draft without persisting it.
func (h *APIHandlers) ValidateWorkflowBody(c fiber.Ctx) error {
	var workflow models.WorkflowDefinition
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	return c.JSON(h.validateDefinition(&workflow))
}

func (h *APIHandlers) validateDefinition(workflow *models.WorkflowDefinition) validation.Result {
	return validation.Validate(workflow, validation.Options{
		Registry:    h.registry,
		CheckBlocks: true,
	})
}

// ExecuteWorkflow starts a run of a stored workflow. With ?async=true the run
// is accepted and executed in the background; otherwise the request blocks
// until the run finishes.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ExecuteWorkflowRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	opts := execution.SubmitOptions{
		InputData: req.InputData,
		Variables: req.Variables,
		Secrets:   req.Secrets,
		Mode:      req.Mode,
		OwnerID:   req.OwnerID,
	}

	async := false

	if asyncStr := c.Query("async"); asyncStr != "" {
		parsed, err := strconv.ParseBool(asyncStr)
		if err != nil {
			return badRequest(c, "Invalid async parameter")
		}

		async = parsed
	}

	if async {
		submission, err := h.runner.Submit(c.Context(), id, opts)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.Status(fiber.StatusAccepted).JSON(submission)
	}

	result, executionID, err := h.runner.RunSync(c.Context(), id, opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution_id": executionID,
		"status":       result.Status,
		"output":       result.Output,
		"error":        result.Error,
		"node_results": result.NodeResults,
	})
}

func (h *APIHandlers) GetBlocks(c fiber.Ctx) error {
	if category := c.Query("category"); category != "" {
		return c.JSON(h.registry.ByCategory(category))
	}

	return c.JSON(h.registry.AllMetadata())
}

func (h *APIHandlers) GetBlock(c fiber.Ctx) error {
	blockType := c.Params("type")
	if blockType == "" {
		return badRequest(c, "Block type is required")
	}

	meta, ok := h.registry.Metadata(blockType)
	if !ok {
		return notFound(c, "Block type not registered")
	}

	return c.JSON(meta)
}

// TestBlock invokes a single block in test mode with caller-supplied config
// and input, without touching any stored workflow.
func (h *APIHandlers) TestBlock(c fiber.Ctx) error {
	blockType := c.Params("type")
	if blockType == "" {
		return badRequest(c, "Block type is required")
	}

	var req TestBlockRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	timeout := defaultBlockTestTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	result, err := h.runner.TestBlock(c.Context(), blockType, req.Config, req.Input, req.Variables, req.Secrets, timeout)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	exec, err := h.tracker.GetExecutionByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	nodeResults, err := h.tracker.GetBlockExecutions(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution":    exec,
		"node_results": nodeResults,
	})
}

func (h *APIHandlers) GetExecutionTimeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if _, err := h.tracker.GetExecutionByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	timeline, err := h.tracker.GetExecutionTimeline(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"timeline": timeline})
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if !h.tracker.CancelExecution(c.Context(), id) {
		return notFound(c, "Execution not found or already finished")
	}

	return c.JSON(fiber.Map{"execution_id": id, "status": models.ExecutionStatusCancelled})
}

func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Job ID is required")
	}

	job := h.processor.GetJob(id)
	if job == nil {
		return notFound(c, "Job not found")
	}

	return c.JSON(job)
}

func (h *APIHandlers) GetJobStats(c fiber.Ctx) error {
	return c.JSON(h.processor.Stats())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryErr := h.store.HealthCheck(c.Context())
	registeredBlocks := len(h.registry.List())

	status := "healthy"
	httpStatus := http.StatusOK

	repositoryCheck := "ok"
	if repositoryErr != nil {
		repositoryCheck = repositoryErr.Error()
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	registryCheck := "ok"
	if registeredBlocks == 0 {
		registryCheck = "no blocks registered"
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
			"registry":   registryCheck,
			"blocks":     registeredBlocks,
		},
		"timestamp": time.Now().UTC(),
	})
}
