// Package jobs provides an in-memory asynchronous job processor. Jobs wrap a
// unit of work (typically a workflow run) as a cancellable, progress-reporting
// task whose lifecycle is tracked independent of durable persistence.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/flowd/pkg/models"
)

// WorkBody performs the actual work of a job. It reports progress through the
// supplied callback and returns the terminal result. Returning an error or a
// result with Success=false fails the job.
type WorkBody func(ctx context.Context, report models.ProgressFunc) (*models.JobResult, error)

// Hooks are invoked by the processor during a job's lifetime. OnProgress fires
// on every progress report; OnComplete and OnError fire exactly once at the
// terminal transition, and neither fires for a cancelled job.
type Hooks struct {
	OnProgress func(jobID string, percentage float64, event models.ProgressEvent)
	OnComplete func(jobID string, result *models.JobResult)
	OnError    func(jobID string, err error)
}

type jobState struct {
	job    *models.Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Processor owns all in-memory job state. Jobs are retained for the process
// lifetime; there is no eviction.
type Processor struct {
	mu     sync.RWMutex
	jobs   map[string]*jobState
	logger *slog.Logger
}

func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		jobs:   make(map[string]*jobState),
		logger: logger.With("module", "jobs"),
	}
}

// CreateJob registers a new pending job and returns a snapshot of it.
func (p *Processor) CreateJob(ownerID string, jobType models.JobType, payload map[string]any) *models.Job {
	job := &models.Job{
		ID:        "job-" + uuid.New().String()[:8],
		OwnerID:   ownerID,
		Type:      jobType,
		Status:    models.JobStatusPending,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	p.mu.Lock()
	p.jobs[job.ID] = &jobState{
		job:  job,
		done: make(chan struct{}),
	}
	p.mu.Unlock()

	return copyJob(job)
}

// StartJob transitions a pending job to processing and runs body in a new
// goroutine under a per-job cancellable context.
func (p *Processor) StartJob(ctx context.Context, jobID string, body WorkBody, hooks Hooks) error {
	p.mu.Lock()

	state, ok := p.jobs[jobID]
	if !ok {
		p.mu.Unlock()

		return fmt.Errorf("job %s not found", jobID)
	}

	if state.job.Status != models.JobStatusPending {
		status := state.job.Status
		p.mu.Unlock()

		return fmt.Errorf("job %s is %s, expected pending", jobID, status)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	state.cancel = cancel

	now := time.Now().UTC()
	state.job.Status = models.JobStatusProcessing
	state.job.StartedAt = &now
	p.mu.Unlock()

	go p.run(jobCtx, state, body, hooks)

	return nil
}

func (p *Processor) run(ctx context.Context, state *jobState, body WorkBody, hooks Hooks) {
	defer close(state.done)

	jobID := state.job.ID

	report := func(percentage float64, event models.ProgressEvent) {
		p.recordProgress(state, percentage, event)

		if hooks.OnProgress != nil {
			hooks.OnProgress(jobID, percentage, event)
		}
	}

	result, err := p.invoke(ctx, body, report)

	p.mu.Lock()

	cancelled := state.job.Status == models.JobStatusCancelled || ctx.Err() == context.Canceled

	now := time.Now().UTC()
	state.job.CompletedAt = &now

	switch {
	case cancelled:
		state.job.Status = models.JobStatusCancelled
		state.job.Result = result
	case err != nil:
		state.job.Status = models.JobStatusFailed
		state.job.Result = &models.JobResult{Success: false, Error: err.Error()}
	case result != nil && !result.Success:
		state.job.Status = models.JobStatusFailed
		state.job.Result = result

		err = fmt.Errorf("job failed: %s", result.Error)
	default:
		state.job.Status = models.JobStatusCompleted
		state.job.Progress = 100
		state.job.Result = result
	}

	status := state.job.Status
	p.mu.Unlock()

	p.logger.Info("job finished", "job_id", jobID, "status", status)

	switch status {
	case models.JobStatusCompleted:
		if hooks.OnComplete != nil {
			hooks.OnComplete(jobID, result)
		}
	case models.JobStatusFailed:
		if hooks.OnError != nil {
			hooks.OnError(jobID, err)
		}
	}
}

func (p *Processor) invoke(ctx context.Context, body WorkBody, report models.ProgressFunc) (result *models.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return body(ctx, report)
}

func (p *Processor) recordProgress(state *jobState, percentage float64, event models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if percentage > state.job.Progress {
		state.job.Progress = percentage
	}

	state.job.Timeline = append(state.job.Timeline, models.JobEvent{
		Event:      event.Event,
		Percentage: percentage,
		NodeID:     event.NodeID,
		Details:    event.Details,
		CreatedAt:  time.Now().UTC(),
	})
}

// CancelJob requests cooperative cancellation of a job. The in-flight node is
// allowed to finish; no further nodes are scheduled. Returns the job snapshot,
// or nil when the job is unknown.
func (p *Processor) CancelJob(jobID string) *models.Job {
	p.mu.Lock()

	state, ok := p.jobs[jobID]
	if !ok {
		p.mu.Unlock()

		return nil
	}

	if !state.job.Status.IsTerminal() {
		state.job.Status = models.JobStatusCancelled
	}

	cancel := state.cancel
	snapshot := copyJob(state.job)
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	p.logger.Info("job cancellation requested", "job_id", jobID)

	return snapshot
}

// GetJob returns a snapshot of a job, or nil when unknown.
func (p *Processor) GetJob(jobID string) *models.Job {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state, ok := p.jobs[jobID]
	if !ok {
		return nil
	}

	return copyJob(state.job)
}

// Stats returns the number of jobs in each status.
func (p *Processor) Stats() map[models.JobStatus]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := map[models.JobStatus]int{
		models.JobStatusPending:    0,
		models.JobStatusProcessing: 0,
		models.JobStatusCompleted:  0,
		models.JobStatusFailed:     0,
		models.JobStatusCancelled:  0,
	}

	for _, state := range p.jobs {
		stats[state.job.Status]++
	}

	return stats
}

// Wait blocks until the job reaches a terminal state or the context expires.
func (p *Processor) Wait(ctx context.Context, jobID string) error {
	p.mu.RLock()
	state, ok := p.jobs[jobID]
	p.mu.RUnlock()

	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}

	select {
	case <-state.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func copyJob(job *models.Job) *models.Job {
	clone := *job
	clone.Timeline = append([]models.JobEvent(nil), job.Timeline...)

	return &clone
}
