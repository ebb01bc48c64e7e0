package postgres

import (
	"context"
	"fmt"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookEventRepository gives insert-if-absent idempotency for
// at-least-once external events.
type WebhookEventRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookEventRepository(pool *pgxpool.Pool) *WebhookEventRepository {
	return &WebhookEventRepository{pool: pool}
}

// RecordProcessedEvent inserts the event if eventID hasn't been seen. A
// repeated call with the same eventID is a no-op thanks to the unique
// constraint on event_id.
func (r *WebhookEventRepository) RecordProcessedEvent(ctx context.Context, event domain.WebhookEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_events (event_id, event_type, processed_at, status)
		VALUES ($1, $2, NOW(), $3)
		ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.EventType, event.Status,
	)
	if err != nil {
		return fmt.Errorf("record processed event: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) HasBeenProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM webhook_events WHERE event_id = $1)`, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return exists, nil
}
