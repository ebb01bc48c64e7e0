package domain

import "time"

// WebhookEvent records an externally-delivered, at-least-once event the
// scheduler has consumed (payment webhooks today; any at-least-once event
// the core ingests tomorrow). The unique constraint on EventID is what
// makes recordProcessedEvent idempotent.
type WebhookEvent struct {
	EventID     string
	EventType   string
	ProcessedAt time.Time
	Status      string
}
