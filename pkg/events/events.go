// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/flowd/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "flowd.events"                 // Topic for execution lifecycle events
const RunRequestTopic = "flowd.run.requests" // Topic for run submissions consumed by workers

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run submission events.
	RunRequestedEvent EventType = "workflow.run.requested"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "workflow.execution.started"
	ExecutionProgressEvent  EventType = "workflow.execution.progress"
	ExecutionCompletedEvent EventType = "workflow.execution.completed"
	ExecutionFailedEvent    EventType = "workflow.execution.failed"
	ExecutionCancelledEvent EventType = "workflow.execution.cancelled"

	// Node events.
	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// RunRequested asks a worker to execute a workflow.
type RunRequested struct {
	BaseEvent

	ExecutionID string               `json:"execution_id,omitempty"`
	InputData   map[string]any       `json:"input_data,omitempty"`
	Variables   map[string]any       `json:"variables,omitempty"`
	Mode        models.ExecutionMode `json:"mode,omitempty"`
	OwnerID     string               `json:"owner_id,omitempty"`
}

func (e RunRequested) GetType() EventType {
	return RunRequestedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID  string         `json:"execution_id"`
	WorkflowName string         `json:"workflow_name"`
	InputData    map[string]any `json:"input_data,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
	Initiator    string         `json:"initiator,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// ExecutionProgress is emitted at node boundaries as the run advances.
type ExecutionProgress struct {
	BaseEvent

	ExecutionID string  `json:"execution_id"`
	Percentage  float64 `json:"percentage"`
	NodeID      string  `json:"node_id,omitempty"`
	Event       string  `json:"event"`
}

func (e ExecutionProgress) GetType() EventType {
	return ExecutionProgressEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string         `json:"execution_id"`
	DurationMs    int64          `json:"duration_ms"`
	NodesExecuted int            `json:"nodes_executed"`
	Output        map[string]any `json:"output,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID    string         `json:"execution_id"`
	DurationMs     int64          `json:"duration_ms"`
	Error          ExecutionError `json:"error"`
	NodesExecuted  int            `json:"nodes_executed"`
	PartialResults map[string]any `json:"partial_results,omitempty"`
}

type ExecutionError struct {
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	DurationMs    int64  `json:"duration_ms"`
	Reason        string `json:"reason,omitempty"`
	CancelledBy   string `json:"cancelled_by,omitempty"`
	NodesExecuted int    `json:"nodes_executed"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// NodeCompleted records one node result inside a run.
type NodeCompleted struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	NodeID      string            `json:"node_id"`
	BlockType   string            `json:"block_type"`
	Status      models.NodeStatus `json:"status"`
	Output      map[string]any    `json:"output,omitempty"`
	DurationMs  int64             `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	BlockType   string `json:"block_type"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}
