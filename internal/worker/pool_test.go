package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"judge-core/internal/queue"
	"judge-core/internal/sandbox"
	"judge-core/internal/submission"
)

func TestPool_StatsBeforeStart(t *testing.T) {
	q := queue.New(4)
	repo := newFakeRepository()
	pool := NewPool(2, []int{0, 1}, q, sandbox.NewRunner("/usr/bin/isolate"), repo, DefaultConfig())

	stats := pool.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 0, stats.Busy)
	assert.Equal(t, 2, stats.Idle)
}

func TestPool_DispatchesEnqueuedJobAndReportsIdleAfterStop(t *testing.T) {
	boxRoot := t.TempDir()
	binPath := writeFakeIsolate(t, boxRoot)

	q := queue.New(4)
	repo := newFakeRepository()
	row := &submission.Submission{ID: "sub-pool", Status: submission.StatusPending}
	require.NoError(t, repo.Create(context.Background(), row))

	pool := NewPool(1, []int{7}, q, sandbox.NewRunner(binPath), repo, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.NoError(t, q.Enqueue(queue.Job{SubmissionID: row.ID, Request: queue.Request{SourceCode: `print("ok")`, Language: "python"}}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := repo.Row(row.ID); got.Status.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.True(t, repo.Row(row.ID).Status.IsTerminal(), "job should have reached a terminal status")

	pool.Stop()
	stats := pool.Stats()
	assert.Equal(t, 0, stats.Busy)
}

func TestPool_ExpiresStaleJobsAsInternalError(t *testing.T) {
	q := queue.New(4)
	repo := newFakeRepository()
	row := &submission.Submission{ID: "sub-stale", Status: submission.StatusPending}
	require.NoError(t, repo.Create(context.Background(), row))

	cfg := DefaultConfig()
	cfg.QueueTimeout = 20 * time.Millisecond
	// Zero workers: nothing ever dequeues the job, so it can only ever
	// leave the queue through the timeout sweep.
	pool := NewPool(0, []int{}, q, sandbox.NewRunner("/usr/bin/isolate"), repo, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	require.NoError(t, q.Enqueue(queue.Job{SubmissionID: row.ID, Request: queue.Request{SourceCode: "x", Language: "python"}}))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if repo.Row(row.ID).Status == submission.StatusInternalError {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	got := repo.Row(row.ID)
	assert.Equal(t, submission.StatusInternalError, got.Status)
	assert.Equal(t, "queue timeout", got.Message)
}

func TestPool_StartIsIdempotent(t *testing.T) {
	q := queue.New(4)
	repo := newFakeRepository()
	pool := NewPool(1, []int{0}, q, sandbox.NewRunner("/usr/bin/isolate"), repo, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	pool.Start(ctx) // must not spawn a second dispatch loop

	pool.Stop()
}
