// Package intake consumes run requests from an external Redis queue and
// forwards them to the run submission path, so producers outside the process
// can enqueue workflow executions without talking to the HTTP API.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/leadflow/flowd/pkg/models"
)

// RunRequest is the payload producers push onto the intake queue.
type RunRequest struct {
	WorkflowID string               `json:"workflow_id"`
	InputData  map[string]any       `json:"input_data,omitempty"`
	Variables  map[string]any       `json:"variables,omitempty"`
	Mode       models.ExecutionMode `json:"mode,omitempty"`
	OwnerID    string               `json:"owner_id,omitempty"`
}

// SubmitFunc delivers one decoded run request.
type SubmitFunc func(ctx context.Context, request RunRequest) error

// Config holds the Redis connection and queue settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Consumer pops run requests from a Redis list and submits them. Malformed
// payloads are logged and dropped; submission failures are logged and the
// consumer keeps going.
type Consumer struct {
	config Config
	submit SubmitFunc
	logger *slog.Logger

	client redis.UniversalClient
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewConsumer(config Config, submit SubmitFunc, logger *slog.Logger) (*Consumer, error) {
	if config.Queue == "" {
		return nil, errors.New("intake queue name is required")
	}

	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		config: config,
		submit: submit,
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "intake",
			"queue", config.Queue,
		),
	}, nil
}

// Start connects to Redis and begins consuming in a background goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Starting intake consumer")

	c.client = redis.NewClient(&redis.Options{
		Addr:     c.config.Addr,
		Password: c.config.Password,
		DB:       c.config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.logger.InfoContext(ctx, "Connected to Redis", "addr", c.config.Addr, "db", c.config.DB)

	c.wg.Add(1)

	go c.consume(ctx)

	return nil
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "Intake consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, stopping intake consumer")

			return
		default:
			err := c.processMessage(ctx)
			if err != nil {
				c.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, 1*time.Second, c.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	var request RunRequest
	if err := json.Unmarshal([]byte(message), &request); err != nil {
		c.logger.WarnContext(ctx, "Dropping malformed run request", "error", err)

		return nil
	}

	if request.WorkflowID == "" {
		c.logger.WarnContext(ctx, "Dropping run request without workflow_id")

		return nil
	}

	c.logger.InfoContext(ctx, "Received run request", "workflow_id", request.WorkflowID)

	if err := c.submit(ctx, request); err != nil {
		c.logger.ErrorContext(ctx, "Failed to submit run request",
			"workflow_id", request.WorkflowID,
			"error", err,
		)
	}

	return nil
}

// Stop drains the consumer and closes the Redis connection.
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Stopping intake consumer")

	close(c.stopCh)
	c.wg.Wait()

	if c.client != nil {
		err := c.client.Close()
		if err != nil {
			c.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
