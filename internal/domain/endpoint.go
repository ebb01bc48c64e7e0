package domain

import (
	"errors"
	"time"
)

var (
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrEndpointArchived = errors.New("endpoint is archived")
	ErrInvalidMethod    = errors.New("unsupported HTTP method")
	ErrAmbiguousCadence = errors.New("set exactly one of baselineCron or baselineIntervalMs")
)

// Method is the closed set of HTTP methods an endpoint may be dispatched with.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	default:
		return false
	}
}

const (
	DefaultBaselineIntervalMs = int64(60000)
	DefaultTimeoutMs          = int64(30000)
	DefaultMaxExecutionTimeMs = int64(60000)
	DefaultMaxResponseSizeKb  = int64(100)
)

// Endpoint is the unit of scheduling: an HTTP call configuration plus the
// runtime state (cadence, hints, lock) the scheduler mutates between runs.
type Endpoint struct {
	ID       string
	TenantID string
	JobID    *string
	Name     string

	// Baseline cadence — cron wins when both are set; ValidateCadence fills
	// in the default interval when neither is.
	BaselineCron       *string
	BaselineIntervalMs *int64

	// Guardrails.
	MinIntervalMs *int64
	MaxIntervalMs *int64

	// AI hints — all TTL-scoped by AIHintExpiresAt.
	AIHintIntervalMs    *int64
	AIHintNextRunAt     *time.Time
	AIHintBodyJSON      *string
	AIHintBodyExpiresAt *time.Time
	AIHintReason        *string
	AIHintExpiresAt     *time.Time

	// Pause / archive.
	PausedUntil *time.Time
	ArchivedAt  *time.Time

	// Runtime state.
	LastRunAt    *time.Time
	NextRunAt    time.Time
	FailureCount int

	LockedBy      *string
	LockExpiresAt *time.Time

	// Execution config.
	URL                string
	Method             Method
	HeadersJSON        string
	BodyJSON           *string
	TimeoutMs          int64
	MaxExecutionTimeMs int64
	MaxResponseSizeKb  int64

	// AI planner context.
	Description *string
	BodySchema  *string

	// Notification bookkeeping for the degradation notifier (see internal/notify).
	LastNotifiedFailureCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HintsFresh reports whether the endpoint's AI hint fields are still within TTL at `now`.
func (e *Endpoint) HintsFresh(now time.Time) bool {
	return e.AIHintExpiresAt != nil && e.AIHintExpiresAt.After(now)
}

// BodyHintFresh reports whether the AI body override is still within TTL at `now`.
func (e *Endpoint) BodyHintFresh(now time.Time) bool {
	return e.AIHintBodyExpiresAt != nil && e.AIHintBodyExpiresAt.After(now)
}

// Paused reports whether pausedUntil dominates scheduling at `now`.
func (e *Endpoint) Paused(now time.Time) bool {
	return e.PausedUntil != nil && e.PausedUntil.After(now)
}

// Validate checks the execution config at create/update time, before the
// endpoint ever reaches the scheduler.
func (e *Endpoint) Validate() error {
	if !e.Method.Valid() {
		return ErrInvalidMethod
	}
	return e.ValidateCadence()
}

// ValidateCadence enforces that exactly one baseline cadence is in effect,
// with cron taking precedence when both happen to be present.
func (e *Endpoint) ValidateCadence() error {
	if e.BaselineCron != nil && *e.BaselineCron != "" {
		return nil
	}
	if e.BaselineIntervalMs == nil {
		def := DefaultBaselineIntervalMs
		e.BaselineIntervalMs = &def
	}
	if *e.BaselineIntervalMs <= 0 {
		return ErrAmbiguousCadence
	}
	return nil
}
