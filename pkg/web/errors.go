package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/leadflow/flowd/pkg/execution"
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps engine and persistence errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var engineErr *models.EngineError

	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution not found")

	case errors.Is(err, persistence.ErrExecutionTerminal):
		return conflict(c, "execution_terminal", "execution already reached a terminal status")

	case errors.Is(err, execution.ErrWorkflowNotActive):
		return conflict(c, "workflow_not_active", "workflow must be active to run")

	case errors.As(err, &engineErr):
		switch engineErr.Kind {
		case models.ErrorKindValidation, models.ErrorKindUnknownBlockType, models.ErrorKindCycleDetected:
			problem := problems.NewStatusProblem(400).
				WithInstance(c.Path()).
				WithType(string(engineErr.Kind)).
				WithDetail(engineErr.Message)

			return c.Status(fiber.StatusBadRequest).JSON(problem)
		default:
			problem := problems.NewStatusProblem(422).
				WithInstance(c.Path()).
				WithType(string(engineErr.Kind)).
				WithDetail(engineErr.Message)

			return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
		}

	default:
		return internalError(c, err)
	}
}
