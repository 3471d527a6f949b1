package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/leadflow/flowd/pkg/cmd"
	"github.com/leadflow/flowd/pkg/execution"
	"github.com/leadflow/flowd/pkg/intake"
	"github.com/leadflow/flowd/pkg/jobs"
	"github.com/leadflow/flowd/pkg/log"
	"github.com/leadflow/flowd/pkg/otelhelper"
	"github.com/leadflow/flowd/pkg/scheduler"
	"github.com/leadflow/flowd/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "flowd-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker to execute workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis address for the intake queue (disabled when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-queue",
				Usage:   "Redis list key to consume run requests from",
				Value:   "flowd:run-requests",
				Sources: cli.EnvVars("REDIS_QUEUE"),
			},
			&cli.BoolFlag{
				Name:    "scheduler",
				Usage:   "Enable cron scheduling of workflows with schedule metadata",
				Sources: cli.EnvVars("SCHEDULER_ENABLED"),
			},
			&cli.DurationFlag{
				Name:    "scheduler-refresh",
				Usage:   "Interval between schedule rescans",
				Value:   time.Minute,
				Sources: cli.EnvVars("SCHEDULER_REFRESH"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("flowd-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing flowd worker")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry, err := cmd.NewRegistry()
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			tracer := otelhelper.NoopTracer()

			if command.Bool("tracing") {
				tracer, err = otelhelper.NewTracer(ctx, "flowd-worker")
				if err != nil {
					return err
				}
			}

			orchestrator := workflow.NewOrchestrator(registry, logger, workflow.WithTracer(tracer))
			processor := jobs.NewProcessor(logger)
			tracker := execution.NewTracker(persistence, processor, eventBus, logger)
			runner := execution.NewRunner(persistence, registry, orchestrator, processor, tracker, logger)

			worker := NewWorker(workerID, runner, eventBus, nil, nil, command.Duration("scheduler-refresh"), logger)

			if addr := command.String("redis-url"); addr != "" {
				consumer, err := intake.NewConsumer(intake.Config{
					Addr:  addr,
					Queue: command.String("redis-queue"),
				}, worker.submitRunRequest, logger)
				if err != nil {
					return err
				}

				worker.intake = consumer
			}

			if command.Bool("scheduler") {
				worker.scheduler = scheduler.NewScheduler(persistence.WorkflowRepository(), worker.submitByID, logger)
			}

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
