// Package main provides the flowd API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadflow/flowd/pkg/eventbus"
	"github.com/leadflow/flowd/pkg/execution"
	"github.com/leadflow/flowd/pkg/jobs"
	"github.com/leadflow/flowd/pkg/persistence"
	"github.com/leadflow/flowd/pkg/registry"
	"github.com/leadflow/flowd/pkg/web"
	"github.com/leadflow/flowd/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	orchestratorOpts := []workflow.Option{}
	if a.tracer != nil {
		orchestratorOpts = append(orchestratorOpts, workflow.WithTracer(a.tracer))
	}

	orchestrator := workflow.NewOrchestrator(a.registry, a.logger, orchestratorOpts...)
	processor := jobs.NewProcessor(a.logger)
	tracker := execution.NewTracker(a.persistence, processor, a.eventBus, a.logger)
	runner := execution.NewRunner(a.persistence, a.registry, orchestrator, processor, tracker, a.logger)

	handlers := web.NewAPIHandlers(a.persistence, runner, tracker, processor, a.registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowd API")
	})

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

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(port))
}
