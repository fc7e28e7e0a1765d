// Package judge composes the Language Registry, Job Queue, Worker Pool
// and Submission Repository into the façade external callers use:
// Submit, GetSubmission, GetStats, Start, Stop. Deliberately not a
// package-level singleton — tests construct independent instances;
// cmd/judged wires the one process-wide instance itself.
package judge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"judge-core/internal/judgemetrics"
	"judge-core/internal/language"
	"judge-core/internal/queue"
	"judge-core/internal/submission"
	"judge-core/internal/worker"
)

// ErrValidation covers missing/empty required fields and unknown
// languages.
var ErrValidation = errors.New("validation failed")

// ErrLimitExceeded is returned when a requested limit is above
// MAX_LIMITS.
var ErrLimitExceeded = errors.New("limit exceeded")

// Request mirrors the external submit request.
type Request struct {
	SourceCode     string
	Language       string
	Stdin          string
	TimeLimit      *float64
	MemoryLimit    *int
	ExpectedOutput string // reserved, not used by the core
}

// SubmitResult is the synchronous {id, status} response.
type SubmitResult struct {
	ID     string
	Status submission.Status
}

// Config carries the knobs Service needs beyond what the Pool/Queue
// already own. The queue-admission timeout is enforced by the Pool's
// dispatch loop instead (it already owns the sweep goroutine and the
// queue reference); see worker.Config.QueueTimeout.
type Config struct{}

// Service is the Judge Core's façade.
type Service struct {
	cfg   Config
	queue *queue.Queue
	pool  *worker.Pool
	repo  submission.Repository
}

// New builds a Service over the given queue, pool and repository. It does
// not start the pool; call Start.
func New(cfg Config, q *queue.Queue, pool *worker.Pool, repo submission.Repository) *Service {
	return &Service{cfg: cfg, queue: q, pool: pool, repo: repo}
}

// Start spins up the worker pool.
func (s *Service) Start(ctx context.Context) {
	s.pool.Start(ctx)
}

// Stop stops the pool and clears the queue; in-flight jobs run to
// completion.
func (s *Service) Stop() {
	s.pool.Stop()
}

// Submit validates req, creates a PENDING row, and enqueues the job. It
// never blocks on the pipeline — the submission progresses asynchronously
// and is observed by polling GetSubmission.
func (s *Service) Submit(ctx context.Context, req Request, userID string) (result SubmitResult, err error) {
	defer func() {
		outcome := "accepted"
		switch {
		case errors.Is(err, ErrValidation), errors.Is(err, ErrLimitExceeded):
			outcome = "validation_error"
		case errors.Is(err, queue.ErrQueueFull):
			outcome = "queue_full"
		case err != nil:
			outcome = "internal_error"
		}
		judgemetrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	}()

	if req.SourceCode == "" {
		return SubmitResult{}, fmt.Errorf("%w: source_code is required", ErrValidation)
	}
	if req.Language == "" {
		return SubmitResult{}, fmt.Errorf("%w: language is required", ErrValidation)
	}

	descriptor, err := language.Get(req.Language)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if req.TimeLimit != nil && *req.TimeLimit > language.MaxLimits.TimeLimit {
		return SubmitResult{}, fmt.Errorf("%w: time_limit exceeds maximum of %.0fs", ErrLimitExceeded, language.MaxLimits.TimeLimit)
	}
	if req.MemoryLimit != nil && float64(*req.MemoryLimit) > float64(language.MaxLimits.MemLimit) {
		return SubmitResult{}, fmt.Errorf("%w: memory_limit exceeds maximum of %dMB", ErrLimitExceeded, language.MaxLimits.MemLimit)
	}

	limits := language.Limits{TimeLimit: descriptor.DefaultTimeLimit, MemLimit: descriptor.DefaultMemLimit}
	if req.TimeLimit != nil {
		limits.TimeLimit = *req.TimeLimit
	}
	if req.MemoryLimit != nil {
		limits.MemLimit = *req.MemoryLimit
	}

	// Claim a slot before touching the repository at all: if two Submit
	// calls race for the last slot, only one may proceed past this point,
	// so no PENDING row is ever created for a job the queue rejects.
	if err := s.queue.Reserve(); err != nil {
		return SubmitResult{}, err
	}

	id := uuid.NewString()
	row := &submission.Submission{
		ID:          id,
		UserID:      userID,
		Language:    descriptor.Key,
		SourceCode:  req.SourceCode,
		Stdin:       req.Stdin,
		Status:      submission.StatusPending,
		TimeLimit:   limits.TimeLimit,
		MemoryLimit: limits.MemLimit,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.queue.Release()
		return SubmitResult{}, fmt.Errorf("create submission row: %w", err)
	}

	job := queue.Job{
		SubmissionID: id,
		UserID:       userID,
		Limits:       limits,
		Request: queue.Request{
			SourceCode:  req.SourceCode,
			Language:    descriptor.Key,
			Stdin:       req.Stdin,
			TimeLimit:   req.TimeLimit,
			MemoryLimit: req.MemoryLimit,
		},
	}
	// The row exists and the slot is already ours: Commit only makes the
	// job visible to a worker, so it cannot fail or race with another
	// producer.
	s.queue.Commit(job)

	return SubmitResult{ID: id, Status: submission.StatusPending}, nil
}

// GetSubmission returns the submission row for id.
func (s *Service) GetSubmission(ctx context.Context, id string) (*submission.Submission, error) {
	return s.repo.Get(ctx, id)
}

// Stats is the pool stats plus the effective configuration.
type Stats struct {
	Pool   worker.Stats
	Limits language.Limits
}

// GetStats returns pool stats and the effective configuration.
func (s *Service) GetStats() Stats {
	return Stats{
		Pool:   s.pool.Stats(),
		Limits: language.MaxLimits,
	}
}
