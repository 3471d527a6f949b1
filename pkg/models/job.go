package models

import "time"

// JobStatus defines the lifecycle states of an asynchronous job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the job can no longer change state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobType identifies what kind of work a job performs.
type JobType string

const JobTypeWorkflow JobType = "WORKFLOW"

// JobEvent is one entry in a job's ordered timeline.
type JobEvent struct {
	Event      string         `json:"event"`
	Percentage float64        `json:"percentage"`
	NodeID     string         `json:"node_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// JobResult is the terminal outcome of a job.
type JobResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Job is the in-memory processor's view of one unit of asynchronous work.
// Created on submission, mutated only by the processor, terminal once
// completed, failed or cancelled.
type Job struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Type        JobType        `json:"type"`
	Status      JobStatus      `json:"status"`
	Payload     map[string]any `json:"payload,omitempty"`
	Progress    float64        `json:"progress"`
	Timeline    []JobEvent     `json:"timeline,omitempty"`
	Result      *JobResult     `json:"result,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
