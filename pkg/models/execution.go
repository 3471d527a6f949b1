package models

import "time"

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// ExecutionStatus defines the lifecycle states of a workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status can no longer change.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// NodeExecutionResult is produced once per node per run.
type NodeExecutionResult struct {
	NodeID          string         `json:"node_id"`
	BlockType       string         `json:"block_type"`
	Status          NodeStatus     `json:"status"`
	Input           map[string]any `json:"input,omitempty"`
	Output          map[string]any `json:"output,omitempty"`
	Error           *EngineError   `json:"error,omitempty"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	RetryCount      int            `json:"retry_count"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Logs            []string       `json:"logs,omitempty"`
}

// WorkflowExecution is the durable tracking record for a single run attempt.
// It is created at run start and mutated only through the execution tracker;
// once the status is terminal the record is immutable.
type WorkflowExecution struct {
	ID                 string          `json:"id"`
	WorkflowID         string          `json:"workflow_id"`
	Status             ExecutionStatus `json:"status"`
	InputData          map[string]any  `json:"input_data,omitempty"`
	OutputData         map[string]any  `json:"output_data,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	ErrorStack         string          `json:"error_stack,omitempty"`
	ProgressPercentage float64         `json:"progress_percentage"`
	Mode               ExecutionMode   `json:"mode"`
	StartedAt          time.Time       `json:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	Metadata           map[string]any  `json:"metadata,omitempty"`
}

// TimelineEvent is an append-only audit record scoped to an execution.
type TimelineEvent struct {
	ID           string         `json:"id"`
	ExecutionID  string         `json:"execution_id"`
	Event        string         `json:"event"`
	EventType    string         `json:"event_type"`
	NodeID       string         `json:"node_id,omitempty"`
	BlockType    string         `json:"block_type,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Timeline event types.
const (
	TimelineEventTypeExecution = "execution"
	TimelineEventTypeNode      = "node"
)
