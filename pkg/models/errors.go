package models

import "fmt"

// ErrorKind classifies engine failures so callers can branch without parsing
// messages.
type ErrorKind string

const (
	ErrorKindValidation          ErrorKind = "validation"
	ErrorKindCycleDetected       ErrorKind = "cycle_detected"
	ErrorKindUnknownBlockType    ErrorKind = "unknown_block_type"
	ErrorKindNodeExecutionFailed ErrorKind = "node_execution_failed"
	ErrorKindTimeout             ErrorKind = "timeout"
	ErrorKindCancelled           ErrorKind = "cancelled"
	ErrorKindInternal            ErrorKind = "internal"
)

// EngineError is the structured error carried by node results and run results.
type EngineError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	NodeID  string    `json:"node_id,omitempty"`
}

func (e *EngineError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s (node %s): %s", e.Kind, e.NodeID, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewEngineError creates an EngineError for a node-scoped failure.
func NewEngineError(kind ErrorKind, nodeID, message string) *EngineError {
	return &EngineError{Kind: kind, NodeID: nodeID, Message: message}
}
