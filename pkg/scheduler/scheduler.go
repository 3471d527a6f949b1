// Package scheduler submits workflow runs on cron schedules. A workflow opts
// in by carrying a "schedule" cron expression in its metadata.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
)

// MetadataKey is the workflow metadata field holding the cron expression.
const MetadataKey = "schedule"

// SubmitFunc starts one scheduled run of a workflow.
type SubmitFunc func(ctx context.Context, workflowID string) error

// Scheduler scans active workflows for schedule metadata and registers a cron
// entry per scheduled workflow. Refresh rescans so schedule edits take effect
// without a restart.
type Scheduler struct {
	mu        sync.Mutex
	workflows persistence.WorkflowRepository
	submit    SubmitFunc
	logger    *slog.Logger
	cron      *cron.Cron
	entries   map[string]scheduleEntry // workflow ID -> registered entry
	started   bool
}

// scheduleEntry remembers the expression an entry was registered with, so a
// rescan can tell an edited schedule from an unchanged one.
type scheduleEntry struct {
	id         cron.EntryID
	expression string
}

func NewScheduler(workflows persistence.WorkflowRepository, submit SubmitFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		workflows: workflows,
		submit:    submit,
		logger:    logger.With("module", "scheduler"),
		cron:      cron.New(),
		entries:   make(map[string]scheduleEntry),
	}
}

// Start loads the current schedules and begins firing them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.started {
		s.mu.Unlock()

		return nil
	}

	s.started = true
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started")

	return nil
}

// Refresh rescans active workflows and reconciles the cron entries.
func (s *Scheduler) Refresh(ctx context.Context) error {
	status := models.WorkflowStatusActive

	result, err := s.workflows.ListWorkflows(ctx, persistence.ListWorkflowsOptions{
		Status: &status,
		Limit:  100,
	})
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(result.Workflows))

	for _, def := range result.Workflows {
		expression, ok := def.Metadata[MetadataKey].(string)
		if !ok || expression == "" {
			continue
		}

		seen[def.ID] = true

		if existing, exists := s.entries[def.ID]; exists {
			if existing.expression == expression {
				continue
			}

			// The schedule was edited; the old cadence must stop firing.
			s.cron.Remove(existing.id)
			delete(s.entries, def.ID)
		}

		entryID, err := s.addEntry(ctx, def.ID, expression)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping workflow with invalid schedule",
				"workflow_id", def.ID,
				"schedule", expression,
				"error", err,
			)

			continue
		}

		s.entries[def.ID] = scheduleEntry{id: entryID, expression: expression}
		s.logger.InfoContext(ctx, "Registered schedule", "workflow_id", def.ID, "schedule", expression)
	}

	for workflowID, existing := range s.entries {
		if !seen[workflowID] {
			s.cron.Remove(existing.id)
			delete(s.entries, workflowID)
			s.logger.InfoContext(ctx, "Removed schedule", "workflow_id", workflowID)
		}
	}

	return nil
}

func (s *Scheduler) addEntry(ctx context.Context, workflowID, expression string) (cron.EntryID, error) {
	return s.cron.AddFunc(expression, func() {
		if err := s.submit(ctx, workflowID); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled run submission failed",
				"workflow_id", workflowID,
				"error", err,
			)
		}
	})
}

// Entries returns the workflow IDs with a registered schedule, for
// observability endpoints.
func (s *Scheduler) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for workflowID := range s.entries {
		ids = append(ids, workflowID)
	}

	return ids
}

// Stop halts the cron runner, waiting for in-flight submissions.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.started = false
	s.logger.InfoContext(ctx, "Scheduler stopped")

	return nil
}
