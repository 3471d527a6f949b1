package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/models"
)

func TestCreateJob(t *testing.T) {
	processor := NewProcessor(nil)

	job := processor.CreateJob("user-1", models.JobTypeWorkflow, map[string]any{"workflow_id": "wf-1"})

	require.NotNil(t, job)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "user-1", job.OwnerID)
	assert.Equal(t, models.JobTypeWorkflow, job.Type)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.InDelta(t, 0, job.Progress, 0.001)
}

func TestStartJob_Completes(t *testing.T) {
	processor := NewProcessor(nil)
	job := processor.CreateJob("user-1", models.JobTypeWorkflow, nil)

	var completions atomic.Int32

	err := processor.StartJob(context.Background(), job.ID, func(_ context.Context, report models.ProgressFunc) (*models.JobResult, error) {
		report(50, models.ProgressEvent{Event: "node.completed", NodeID: "n1"})

		return &models.JobResult{Success: true, Data: map[string]any{"ok": true}}, nil
	}, Hooks{
		OnComplete: func(_ string, _ *models.JobResult) { completions.Add(1) },
		OnError:    func(_ string, _ error) { t.Error("OnError must not fire for a completed job") },
	})
	require.NoError(t, err)

	require.NoError(t, processor.Wait(context.Background(), job.ID))

	got := processor.GetJob(job.ID)
	require.NotNil(t, got)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.InDelta(t, 100, got.Progress, 0.001)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Success)
	assert.NotNil(t, got.CompletedAt)
	require.Len(t, got.Timeline, 1)
	assert.Equal(t, "node.completed", got.Timeline[0].Event)
	assert.Equal(t, int32(1), completions.Load())
}

func TestStartJob_Fails(t *testing.T) {
	processor := NewProcessor(nil)
	job := processor.CreateJob("user-1", models.JobTypeWorkflow, nil)

	var failures atomic.Int32

	err := processor.StartJob(context.Background(), job.ID, func(_ context.Context, _ models.ProgressFunc) (*models.JobResult, error) {
		return nil, errors.New("boom")
	}, Hooks{
		OnComplete: func(_ string, _ *models.JobResult) { t.Error("OnComplete must not fire for a failed job") },
		OnError:    func(_ string, _ error) { failures.Add(1) },
	})
	require.NoError(t, err)

	require.NoError(t, processor.Wait(context.Background(), job.ID))

	got := processor.GetJob(job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.Result)
	assert.False(t, got.Result.Success)
	assert.Equal(t, "boom", got.Result.Error)
	assert.Equal(t, int32(1), failures.Load())
}

func TestStartJob_RecoversPanic(t *testing.T) {
	processor := NewProcessor(nil)
	job := processor.CreateJob("user-1", models.JobTypeWorkflow, nil)

	err := processor.StartJob(context.Background(), job.ID, func(_ context.Context, _ models.ProgressFunc) (*models.JobResult, error) {
		panic("unexpected")
	}, Hooks{})
	require.NoError(t, err)

	require.NoError(t, processor.Wait(context.Background(), job.ID))

	got := processor.GetJob(job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Result.Error, "panicked")
}

func TestStartJob_UnknownJob(t *testing.T) {
	processor := NewProcessor(nil)

	err := processor.StartJob(context.Background(), "job-missing", func(_ context.Context, _ models.ProgressFunc) (*models.JobResult, error) {
		return &models.JobResult{Success: true}, nil
	}, Hooks{})

	assert.Error(t, err)
}

func TestStartJob_AlreadyStarted(t *testing.T) {
	processor := NewProcessor(nil)
	job := processor.CreateJob("user-1", models.JobTypeWorkflow, nil)

	release := make(chan struct{})
	body := func(_ context.Context, _ models.ProgressFunc) (*models.JobResult, error) {
		<-release

		return &models.JobResult{Success: true}, nil
	}

	require.NoError(t, processor.StartJob(context.Background(), job.ID, body, Hooks{}))

	err := processor.StartJob(context.Background(), job.ID, body, Hooks{})
	assert.Error(t, err)

	close(release)
	require.NoError(t, processor.Wait(context.Background(), job.ID))
}

func TestCancelJob_MidRun(t *testing.T) {
	processor := NewProcessor(nil)
	job := processor.CreateJob("user-1", models.JobTypeWorkflow, nil)

	started := make(chan struct{})

	err := processor.StartJob(context.Background(), job.ID, func(ctx context.Context, report models.ProgressFunc) (*models.JobResult, error) {
		report(33, models.ProgressEvent{Event: "node.completed", NodeID: "n1"})
		close(started)

		<-ctx.Done()

		return &models.JobResult{Success: false, Error: "cancelled"}, nil
	}, Hooks{
		OnComplete: func(_ string, _ *models.JobResult) { t.Error("OnComplete must not fire for a cancelled job") },
		OnError:    func(_ string, _ error) { t.Error("OnError must not fire for a cancelled job") },
	})
	require.NoError(t, err)

	<-started

	cancelled := processor.CancelJob(job.ID)
	require.NotNil(t, cancelled)
	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)

	require.NoError(t, processor.Wait(context.Background(), job.ID))

	got := processor.GetJob(job.ID)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.Len(t, got.Timeline, 1)
	assert.Equal(t, "n1", got.Timeline[0].NodeID)
}

func TestCancelJob_Unknown(t *testing.T) {
	processor := NewProcessor(nil)

	assert.Nil(t, processor.CancelJob("job-missing"))
}

func TestStats(t *testing.T) {
	processor := NewProcessor(nil)

	pending := processor.CreateJob("user-1", models.JobTypeWorkflow, nil)
	_ = pending

	done := processor.CreateJob("user-1", models.JobTypeWorkflow, nil)
	require.NoError(t, processor.StartJob(context.Background(), done.ID, func(_ context.Context, _ models.ProgressFunc) (*models.JobResult, error) {
		return &models.JobResult{Success: true}, nil
	}, Hooks{}))
	require.NoError(t, processor.Wait(context.Background(), done.ID))

	stats := processor.Stats()
	assert.Equal(t, 1, stats[models.JobStatusPending])
	assert.Equal(t, 1, stats[models.JobStatusCompleted])
}

func TestProgressMonotonic(t *testing.T) {
	processor := NewProcessor(nil)
	job := processor.CreateJob("user-1", models.JobTypeWorkflow, nil)

	require.NoError(t, processor.StartJob(context.Background(), job.ID, func(_ context.Context, report models.ProgressFunc) (*models.JobResult, error) {
		report(60, models.ProgressEvent{Event: "node.completed"})
		report(40, models.ProgressEvent{Event: "node.failed"})

		return &models.JobResult{Success: true}, nil
	}, Hooks{}))

	require.NoError(t, processor.Wait(context.Background(), job.ID))

	got := processor.GetJob(job.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	require.Len(t, got.Timeline, 2)
	assert.InDelta(t, 100, got.Progress, 0.001)
}

func TestWait_ContextExpires(t *testing.T) {
	processor := NewProcessor(nil)
	job := processor.CreateJob("user-1", models.JobTypeWorkflow, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := processor.Wait(ctx, job.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
