package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
)

// ExecutionRepository handles execution-record database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// SaveExecution upserts a run tracking record.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	inputJSON, err := json.Marshal(execution.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal input data: %w", err)
	}

	outputJSON, err := json.Marshal(execution.OutputData)
	if err != nil {
		return fmt.Errorf("failed to marshal output data: %w", err)
	}

	metadataJSON, err := json.Marshal(execution.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, input_data, output_data, error_message, error_stack, progress_percentage, mode, metadata, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			output_data = EXCLUDED.output_data,
			error_message = EXCLUDED.error_message,
			error_stack = EXCLUDED.error_stack,
			progress_percentage = EXCLUDED.progress_percentage,
			metadata = EXCLUDED.metadata,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		string(execution.Status),
		inputJSON,
		outputJSON,
		execution.ErrorMessage,
		execution.ErrorStack,
		execution.ProgressPercentage,
		string(execution.Mode),
		metadataJSON,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

// ExecutionByID returns an execution record by its ID.
func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , status
		  , input_data
		  , output_data
		  , error_message
		  , error_stack
		  , progress_percentage
		  , mode
		  , metadata
		  , started_at
		  , completed_at
		FROM executions
		WHERE id = $1
	`

	var (
		execution    models.WorkflowExecution
		status       string
		mode         string
		inputJSON    []byte
		outputJSON   []byte
		metadataJSON []byte
		errorMessage sql.NullString
		errorStack   sql.NullString
		completedAt  sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&execution.ID,
		&execution.WorkflowID,
		&status,
		&inputJSON,
		&outputJSON,
		&errorMessage,
		&errorStack,
		&execution.ProgressPercentage,
		&mode,
		&metadataJSON,
		&execution.StartedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	execution.Status = models.ExecutionStatus(status)
	execution.Mode = models.ExecutionMode(mode)
	execution.ErrorMessage = errorMessage.String
	execution.ErrorStack = errorStack.String

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	if len(inputJSON) > 0 {
		if err := json.Unmarshal(inputJSON, &execution.InputData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input data: %w", err)
		}
	}

	if len(outputJSON) > 0 {
		if err := json.Unmarshal(outputJSON, &execution.OutputData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output data: %w", err)
		}
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &execution.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &execution, nil
}

// SaveBlockExecution appends one node result to the execution record.
func (r *ExecutionRepository) SaveBlockExecution(ctx context.Context, executionID string, result *models.NodeExecutionResult) error {
	inputJSON, err := json.Marshal(result.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	outputJSON, err := json.Marshal(result.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	errorJSON, err := json.Marshal(result.Error)
	if err != nil {
		return fmt.Errorf("failed to marshal error: %w", err)
	}

	metadataJSON, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	logsJSON, err := json.Marshal(result.Logs)
	if err != nil {
		return fmt.Errorf("failed to marshal logs: %w", err)
	}

	query := `
		INSERT INTO block_executions (execution_id, node_id, block_type, status, input, output, error, execution_time_ms, retry_count, start_time, end_time, metadata, logs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		executionID,
		result.NodeID,
		result.BlockType,
		string(result.Status),
		inputJSON,
		outputJSON,
		errorJSON,
		result.ExecutionTimeMs,
		result.RetryCount,
		result.StartTime,
		result.EndTime,
		metadataJSON,
		logsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save block execution for %s: %w", executionID, err)
	}

	return nil
}

// BlockExecutions returns the stored node results in append order.
func (r *ExecutionRepository) BlockExecutions(ctx context.Context, executionID string) ([]*models.NodeExecutionResult, error) {
	query := `
		SELECT
			node_id
		  , block_type
		  , status
		  , input
		  , output
		  , error
		  , execution_time_ms
		  , retry_count
		  , start_time
		  , end_time
		  , metadata
		  , logs
		FROM block_executions
		WHERE execution_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query block executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	results := make([]*models.NodeExecutionResult, 0)

	for rows.Next() {
		var (
			result       models.NodeExecutionResult
			status       string
			inputJSON    []byte
			outputJSON   []byte
			errorJSON    []byte
			metadataJSON []byte
			logsJSON     []byte
			startTime    sql.NullTime
			endTime      sql.NullTime
		)

		err := rows.Scan(
			&result.NodeID,
			&result.BlockType,
			&status,
			&inputJSON,
			&outputJSON,
			&errorJSON,
			&result.ExecutionTimeMs,
			&result.RetryCount,
			&startTime,
			&endTime,
			&metadataJSON,
			&logsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block execution: %w", err)
		}

		result.Status = models.NodeStatus(status)

		if startTime.Valid {
			result.StartTime = startTime.Time
		}

		if endTime.Valid {
			result.EndTime = endTime.Time
		}

		if len(inputJSON) > 0 {
			if err := json.Unmarshal(inputJSON, &result.Input); err != nil {
				return nil, fmt.Errorf("failed to unmarshal input: %w", err)
			}
		}

		if len(outputJSON) > 0 {
			if err := json.Unmarshal(outputJSON, &result.Output); err != nil {
				return nil, fmt.Errorf("failed to unmarshal output: %w", err)
			}
		}

		if len(errorJSON) > 0 {
			if err := json.Unmarshal(errorJSON, &result.Error); err != nil {
				return nil, fmt.Errorf("failed to unmarshal error: %w", err)
			}
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &result.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		if len(logsJSON) > 0 {
			if err := json.Unmarshal(logsJSON, &result.Logs); err != nil {
				return nil, fmt.Errorf("failed to unmarshal logs: %w", err)
			}
		}

		results = append(results, &result)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating block executions: %w", err)
	}

	return results, nil
}

// TimelineRepository handles timeline-event database operations.
type TimelineRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTimelineRepository creates a new timeline repository.
func NewTimelineRepository(db *sql.DB, logger *slog.Logger) *TimelineRepository {
	return &TimelineRepository{db: db, logger: logger}
}

// AppendEvent appends one event to the execution's timeline.
func (r *TimelineRepository) AppendEvent(ctx context.Context, event *models.TimelineEvent) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO timeline_events (id, execution_id, event, event_type, node_id, block_type, details, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.ExecutionID,
		event.Event,
		event.EventType,
		event.NodeID,
		event.BlockType,
		detailsJSON,
		event.ErrorMessage,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append timeline event for %s: %w", event.ExecutionID, err)
	}

	return nil
}

// EventsByExecution returns the timeline in append order.
func (r *TimelineRepository) EventsByExecution(ctx context.Context, executionID string) ([]*models.TimelineEvent, error) {
	query := `
		SELECT
			id
		  , execution_id
		  , event
		  , event_type
		  , node_id
		  , block_type
		  , details
		  , error_message
		  , created_at
		FROM timeline_events
		WHERE execution_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline events: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	events := make([]*models.TimelineEvent, 0)

	for rows.Next() {
		var (
			event        models.TimelineEvent
			nodeID       sql.NullString
			blockType    sql.NullString
			detailsJSON  []byte
			errorMessage sql.NullString
		)

		err := rows.Scan(
			&event.ID,
			&event.ExecutionID,
			&event.Event,
			&event.EventType,
			&nodeID,
			&blockType,
			&detailsJSON,
			&errorMessage,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}

		event.NodeID = nodeID.String
		event.BlockType = blockType.String
		event.ErrorMessage = errorMessage.String

		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}

		events = append(events, &event)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating timeline events: %w", err)
	}

	return events, nil
}
