package repository

import (
	"context"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
)

// UpdateAfterRunInput is what the scheduler writes back once a run finishes
// and the next plan has been computed.
type UpdateAfterRunInput struct {
	LastRunAt          time.Time
	NextRunAt          time.Time
	FailureCountPolicy domain.FailureCountPolicy
	ClearExpiredHints  bool
}

// EndpointRepository claims, reads, and mutates endpoint rows. Production
// is backed by Postgres with row-level locking; tests use an in-memory
// fake.
type EndpointRepository interface {
	// ClaimDueEndpoints atomically selects up to batchSize non-archived,
	// due, unlocked endpoints, marks them locked by workerID for lockTtl,
	// and returns their ids. Race-free under concurrent workers.
	ClaimDueEndpoints(ctx context.Context, workerID string, batchSize int, lockTTL time.Duration) ([]string, error)

	// GetEndpoint performs a fresh read — called twice per scheduler cycle.
	GetEndpoint(ctx context.Context, id string) (*domain.Endpoint, error)

	// UpdateAfterRun applies the post-run policy and releases the lock.
	UpdateAfterRun(ctx context.Context, id string, input UpdateAfterRunInput) error

	// Hint writers — called only by the AI planner. They never touch lock
	// fields or nextRunAt; besides the hint fields, PauseUntil sets
	// pausedUntil and ResetFailures zeroes failureCount.
	ApplyIntervalHint(ctx context.Context, id string, intervalMs int64, reason string, expiresAt time.Time) error
	ScheduleOneShot(ctx context.Context, id string, at time.Time, reason string, expiresAt time.Time) error
	PauseUntil(ctx context.Context, id string, until time.Time, reason string) error
	ClearHints(ctx context.Context, id string) error
	ResetFailures(ctx context.Context, id string) error

	// MarkNotified records the failure count at which a degradation
	// notification was sent.
	MarkNotified(ctx context.Context, id string, atFailureCount int) error

	Archive(ctx context.Context, id string) error
}
