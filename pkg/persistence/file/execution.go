package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
)

// ExecutionRepository handles execution-record file operations. One JSON file
// per execution holds the tracking record plus its block results, guarded by a
// process-local mutex since appends are read-modify-write.
type ExecutionRepository struct {
	mu   sync.Mutex
	root string
}

type executionFile struct {
	Execution       *models.WorkflowExecution     `json:"execution"`
	BlockExecutions []*models.NodeExecutionResult `json:"block_executions,omitempty"`
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) filePath(executionID string) string {
	return filepath.Clean(path.Join(er.root, "executions", executionID+".json"))
}

func (er *ExecutionRepository) load(executionID string) (*executionFile, error) {
	body, err := os.ReadFile(er.filePath(executionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch execution %s: %w", executionID, err)
	}

	var record executionFile

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	return &record, nil
}

func (er *ExecutionRepository) write(executionID string, record *executionFile) error {
	err := os.MkdirAll(path.Join(er.root, "executions"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", executionID, err)
	}

	return os.WriteFile(er.filePath(executionID), data, 0600)
}

// SaveExecution upserts the tracking record, preserving stored block results.
func (er *ExecutionRepository) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	if err := validateID(execution.ID); err != nil {
		return persistence.NewStoreError("SaveExecution", execution.ID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.load(execution.ID)
	if err != nil {
		return err
	}

	if record == nil {
		record = &executionFile{}
	}

	record.Execution = execution

	return er.write(execution.ID, record)
}

// ExecutionByID retrieves an execution record by its ID.
func (er *ExecutionRepository) ExecutionByID(_ context.Context, executionID string) (*models.WorkflowExecution, error) {
	if err := validateID(executionID); err != nil {
		return nil, persistence.NewStoreError("ExecutionByID", executionID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.load(executionID)
	if err != nil {
		return nil, err
	}

	if record == nil || record.Execution == nil {
		return nil, persistence.NewStoreError("ExecutionByID", executionID, persistence.ErrExecutionNotFound)
	}

	return record.Execution, nil
}

// SaveBlockExecution appends one node result to the execution record.
func (er *ExecutionRepository) SaveBlockExecution(_ context.Context, executionID string, result *models.NodeExecutionResult) error {
	if err := validateID(executionID); err != nil {
		return persistence.NewStoreError("SaveBlockExecution", executionID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.load(executionID)
	if err != nil {
		return err
	}

	if record == nil || record.Execution == nil {
		return persistence.NewStoreError("SaveBlockExecution", executionID, persistence.ErrExecutionNotFound)
	}

	record.BlockExecutions = append(record.BlockExecutions, result)

	return er.write(executionID, record)
}

// BlockExecutions returns the stored node results in append order.
func (er *ExecutionRepository) BlockExecutions(_ context.Context, executionID string) ([]*models.NodeExecutionResult, error) {
	if err := validateID(executionID); err != nil {
		return nil, persistence.NewStoreError("BlockExecutions", executionID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.load(executionID)
	if err != nil {
		return nil, err
	}

	if record == nil || record.Execution == nil {
		return nil, persistence.NewStoreError("BlockExecutions", executionID, persistence.ErrExecutionNotFound)
	}

	return record.BlockExecutions, nil
}

// TimelineRepository stores timeline events, one JSON file per execution.
type TimelineRepository struct {
	mu   sync.Mutex
	root string
}

// NewTimelineRepository creates a new timeline repository.
func NewTimelineRepository(root string) *TimelineRepository {
	return &TimelineRepository{root: root}
}

func (tr *TimelineRepository) filePath(executionID string) string {
	return filepath.Clean(path.Join(tr.root, "timelines", executionID+".json"))
}

// AppendEvent appends one event to the execution's timeline.
func (tr *TimelineRepository) AppendEvent(_ context.Context, event *models.TimelineEvent) error {
	if err := validateID(event.ExecutionID); err != nil {
		return persistence.NewStoreError("AppendEvent", event.ExecutionID, err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	events, err := tr.load(event.ExecutionID)
	if err != nil {
		return err
	}

	events = append(events, event)

	if err := os.MkdirAll(path.Join(tr.root, "timelines"), 0750); err != nil {
		return fmt.Errorf("failed to create timelines directory: %w", err)
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal timeline %s: %w", event.ExecutionID, err)
	}

	return os.WriteFile(tr.filePath(event.ExecutionID), data, 0600)
}

// EventsByExecution returns the timeline in chronological append order.
func (tr *TimelineRepository) EventsByExecution(_ context.Context, executionID string) ([]*models.TimelineEvent, error) {
	if err := validateID(executionID); err != nil {
		return nil, persistence.NewStoreError("EventsByExecution", executionID, err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	events, err := tr.load(executionID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})

	return events, nil
}

func (tr *TimelineRepository) load(executionID string) ([]*models.TimelineEvent, error) {
	body, err := os.ReadFile(tr.filePath(executionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch timeline %s: %w", executionID, err)
	}

	var events []*models.TimelineEvent

	err = json.Unmarshal(body, &events)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeline %s: %w", executionID, err)
	}

	return events, nil
}
