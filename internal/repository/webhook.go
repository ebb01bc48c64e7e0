package repository

import (
	"context"

	"github.com/cronicorn/scheduler/internal/domain"
)

// WebhookEventRepository provides insert-if-absent idempotency for
// at-least-once external events. Payment webhooks are the only producer
// today, but any at-least-once event the scheduler consumes goes through
// the same discipline.
type WebhookEventRepository interface {
	// RecordProcessedEvent inserts the event if eventID hasn't been seen,
	// and is a no-op on a repeated call with the same eventID. It takes no
	// transaction: the insert commits on its own, separately from any
	// business write of the caller.
	RecordProcessedEvent(ctx context.Context, event domain.WebhookEvent) error

	HasBeenProcessed(ctx context.Context, eventID string) (bool, error)
}
