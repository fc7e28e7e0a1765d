package judge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"judge-core/internal/queue"
	"judge-core/internal/sandbox"
	"judge-core/internal/submission"
	"judge-core/internal/worker"
)

// fakeRepository is guarded by a mutex because TestService_Submit_
// ConcurrentAtCapacityLeavesNoOrphanRow calls Submit from two goroutines
// at once, and Submit's Create reaches into rows.
type fakeRepository struct {
	mu   sync.Mutex
	rows map[string]*submission.Submission
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{rows: make(map[string]*submission.Submission)}
}

func (f *fakeRepository) Create(ctx context.Context, s *submission.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeRepository) Get(ctx context.Context, id string) (*submission.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, submission.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeRepository) Update(ctx context.Context, s *submission.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeRepository) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func newTestService(queueCapacity int) (*Service, *fakeRepository) {
	repo := newFakeRepository()
	q := queue.New(queueCapacity)
	pool := worker.NewPool(1, []int{0}, q, sandbox.NewRunner("/usr/bin/isolate"), repo, worker.DefaultConfig())
	return New(Config{}, q, pool, repo), repo
}

func TestService_Submit_Accepted(t *testing.T) {
	svc, repo := newTestService(10)

	result, err := svc.Submit(context.Background(), Request{SourceCode: `print("hi")`, Language: "python"}, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, submission.StatusPending, result.Status)

	row, ok := repo.rows[result.ID]
	require.True(t, ok)
	assert.Equal(t, "python", row.Language)
	assert.Equal(t, "user-1", row.UserID)
}

func TestService_Submit_MissingSourceCode(t *testing.T) {
	svc, _ := newTestService(10)
	_, err := svc.Submit(context.Background(), Request{Language: "python"}, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_Submit_MissingLanguage(t *testing.T) {
	svc, _ := newTestService(10)
	_, err := svc.Submit(context.Background(), Request{SourceCode: "x"}, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_Submit_UnknownLanguage(t *testing.T) {
	svc, _ := newTestService(10)
	_, err := svc.Submit(context.Background(), Request{SourceCode: "x", Language: "cobol"}, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_Submit_TimeLimitAboveMaximum(t *testing.T) {
	svc, _ := newTestService(10)
	over := 1000.0
	_, err := svc.Submit(context.Background(), Request{SourceCode: "x", Language: "python", TimeLimit: &over}, "")
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestService_Submit_MemoryLimitAboveMaximum(t *testing.T) {
	svc, _ := newTestService(10)
	over := 999999
	_, err := svc.Submit(context.Background(), Request{SourceCode: "x", Language: "python", MemoryLimit: &over}, "")
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestService_Submit_QueueFull(t *testing.T) {
	svc, _ := newTestService(1)

	_, err := svc.Submit(context.Background(), Request{SourceCode: "a", Language: "python"}, "")
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), Request{SourceCode: "b", Language: "python"}, "")
	assert.True(t, errors.Is(err, queue.ErrQueueFull))
}

func TestService_GetSubmission_NotFound(t *testing.T) {
	svc, _ := newTestService(10)
	_, err := svc.GetSubmission(context.Background(), "missing")
	assert.ErrorIs(t, err, submission.ErrNotFound)
}

func TestService_GetStats(t *testing.T) {
	svc, _ := newTestService(10)
	stats := svc.GetStats()
	assert.Equal(t, 1, stats.Pool.Total)
}

// TestService_Submit_ConcurrentAtCapacityLeavesNoOrphanRow guards against
// a race where two Submit calls racing for the queue's last slot could
// both create a PENDING row and then only one actually get enqueued,
// leaving the loser's row permanently PENDING with no worker to reach it.
func TestService_Submit_ConcurrentAtCapacityLeavesNoOrphanRow(t *testing.T) {
	svc, repo := newTestService(1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), Request{SourceCode: "x", Language: "python"}, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, queue.ErrQueueFull)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	// Every row the repository actually holds must belong to the
	// submission that won the race; the loser must have created none.
	assert.Equal(t, succeeded, repo.Len())
}
