package repository

import (
	"context"

	"github.com/cronicorn/scheduler/internal/domain"
)

// ExecutionResult is what the Dispatcher hands back to the scheduler loop.
type ExecutionResult struct {
	Status       domain.Status
	StatusCode   *int
	ResponseBody string
	DurationMs   int64
	ErrorMessage *string
}

// Dispatcher executes one endpoint: URL validation, body
// resolution, signing, the HTTP call, and outcome classification. It never
// returns an error — every execution failure is represented as a failed
// ExecutionResult so the scheduler loop never branches on dispatch errors.
type Dispatcher interface {
	Execute(ctx context.Context, ep *domain.Endpoint) ExecutionResult
}
