package repository

import (
	"context"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
)

// CreateRunInput are the fields known when a run starts.
type CreateRunInput struct {
	EndpointID string
	Attempt    int
	Source     domain.Source
}

// FinishRunInput is the outcome recorded when a run completes.
type FinishRunInput struct {
	Status       domain.Status
	DurationMs   int64
	StatusCode   *int
	ResponseBody string
	MaxResponseSizeKb int64
	ErrorMessage *string
}

// RunRepository persists execution attempts.
type RunRepository interface {
	Create(ctx context.Context, input CreateRunInput) (string, error)

	// Finish is idempotent: a repeated call for the same runID is a no-op.
	Finish(ctx context.Context, runID string, input FinishRunInput) error

	// CleanupZombieRuns transitions runs stuck in Running past the
	// threshold to Canceled with a synthetic error, returning the count.
	CleanupZombieRuns(ctx context.Context, olderThan time.Duration) (int, error)

	ListByEndpointID(ctx context.Context, endpointID string, limit int) ([]*domain.Run, error)
}
