package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EndpointRepository struct {
	pool *pgxpool.Pool
}

func NewEndpointRepository(pool *pgxpool.Pool) *EndpointRepository {
	return &EndpointRepository{pool: pool}
}

const endpointColumns = `
	id, tenant_id, job_id, name, baseline_cron, baseline_interval_ms,
	min_interval_ms, max_interval_ms,
	ai_hint_interval_ms, ai_hint_next_run_at, ai_hint_body_json, ai_hint_body_expires_at,
	ai_hint_reason, ai_hint_expires_at,
	paused_until, archived_at,
	last_run_at, next_run_at, failure_count,
	locked_by, lock_expires_at,
	url, method, headers_json, body_json, timeout_ms, max_execution_time_ms, max_response_size_kb,
	description, body_schema, last_notified_failure_count,
	created_at, updated_at`

// ClaimDueEndpoints atomically locks up to batchSize due, unlocked,
// non-archived, non-paused endpoints for workerID. FOR UPDATE SKIP LOCKED
// keeps concurrent scheduler processes from double-claiming the same row.
// The lease is the worker's lockTTL or the endpoint's own
// max_execution_time_ms, whichever is longer, so a slow endpoint isn't
// re-claimed mid-execution.
func (r *EndpointRepository) ClaimDueEndpoints(ctx context.Context, workerID string, batchSize int, lockTTL time.Duration) ([]string, error) {
	query := `
		UPDATE endpoints
		SET    locked_by       = $1,
		       lock_expires_at = NOW() + make_interval(secs => GREATEST($2::float8, max_execution_time_ms / 1000.0)),
		       updated_at      = NOW()
		WHERE id IN (
			SELECT id FROM endpoints
			WHERE  archived_at IS NULL
			  AND  next_run_at <= NOW()
			  AND  (paused_until IS NULL OR paused_until <= NOW())
			  AND  (lock_expires_at IS NULL OR lock_expires_at < NOW())
			ORDER BY next_run_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`

	rows, err := r.pool.Query(ctx, query, workerID, lockTTL.Seconds(), batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim due endpoints: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claimed id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListNeedingAnalysis returns non-archived endpoints whose failure streak
// is at or above minFailureStreak — the AI planner worker's candidate
// pool. It never locks rows: analysis reads are independent of the
// scheduler loop's claim/lock cycle.
func (r *EndpointRepository) ListNeedingAnalysis(ctx context.Context, minFailureStreak int) ([]*domain.Endpoint, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM endpoints
		WHERE archived_at IS NULL AND failure_count >= $1
		ORDER BY failure_count DESC
		LIMIT 200`, endpointColumns)

	rows, err := r.pool.Query(ctx, query, minFailureStreak)
	if err != nil {
		return nil, fmt.Errorf("list endpoints needing analysis: %w", err)
	}
	defer rows.Close()

	var out []*domain.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func (r *EndpointRepository) GetEndpoint(ctx context.Context, id string) (*domain.Endpoint, error) {
	query := fmt.Sprintf(`SELECT %s FROM endpoints WHERE id = $1`, endpointColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanEndpoint(row)
}

func (r *EndpointRepository) UpdateAfterRun(ctx context.Context, id string, input repository.UpdateAfterRunInput) error {
	query := `
		UPDATE endpoints
		SET    last_run_at    = $2,
		       next_run_at    = $3,
		       failure_count  = CASE WHEN $4 = 'reset' THEN 0 ELSE failure_count + 1 END,
		       ai_hint_interval_ms      = CASE WHEN $5 AND ai_hint_expires_at <= NOW() THEN NULL ELSE ai_hint_interval_ms END,
		       ai_hint_next_run_at      = CASE WHEN $5 AND ai_hint_expires_at <= NOW() THEN NULL ELSE ai_hint_next_run_at END,
		       ai_hint_reason           = CASE WHEN $5 AND ai_hint_expires_at <= NOW() THEN NULL ELSE ai_hint_reason END,
		       ai_hint_expires_at       = CASE WHEN $5 AND ai_hint_expires_at <= NOW() THEN NULL ELSE ai_hint_expires_at END,
		       ai_hint_body_json        = CASE WHEN $5 AND ai_hint_body_expires_at <= NOW() THEN NULL ELSE ai_hint_body_json END,
		       ai_hint_body_expires_at  = CASE WHEN $5 AND ai_hint_body_expires_at <= NOW() THEN NULL ELSE ai_hint_body_expires_at END,
		       locked_by      = NULL,
		       lock_expires_at = NULL,
		       updated_at     = NOW()
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, input.LastRunAt, input.NextRunAt, string(input.FailureCountPolicy), input.ClearExpiredHints)
	return err
}

func (r *EndpointRepository) ApplyIntervalHint(ctx context.Context, id string, intervalMs int64, reason string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE endpoints
		SET    ai_hint_interval_ms = $2,
		       ai_hint_next_run_at = NULL,
		       ai_hint_reason      = $3,
		       ai_hint_expires_at  = $4,
		       updated_at          = NOW()
		WHERE id = $1`, id, intervalMs, reason, expiresAt)
	return err
}

func (r *EndpointRepository) ScheduleOneShot(ctx context.Context, id string, at time.Time, reason string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE endpoints
		SET    ai_hint_next_run_at = $2,
		       ai_hint_interval_ms = NULL,
		       ai_hint_reason      = $3,
		       ai_hint_expires_at  = $4,
		       updated_at          = NOW()
		WHERE id = $1`, id, at, reason, expiresAt)
	return err
}

func (r *EndpointRepository) PauseUntil(ctx context.Context, id string, until time.Time, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE endpoints
		SET    paused_until = $2,
		       ai_hint_reason = $3,
		       updated_at = NOW()
		WHERE id = $1`, id, until, reason)
	return err
}

func (r *EndpointRepository) ClearHints(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE endpoints
		SET    ai_hint_interval_ms = NULL,
		       ai_hint_next_run_at = NULL,
		       ai_hint_reason      = NULL,
		       ai_hint_expires_at  = NULL,
		       ai_hint_body_json       = NULL,
		       ai_hint_body_expires_at = NULL,
		       updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (r *EndpointRepository) ResetFailures(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE endpoints SET failure_count = 0, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *EndpointRepository) MarkNotified(ctx context.Context, id string, atFailureCount int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE endpoints SET last_notified_failure_count = $2, updated_at = NOW() WHERE id = $1`,
		id, atFailureCount)
	return err
}

func (r *EndpointRepository) Archive(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE endpoints SET archived_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row rowScanner) (*domain.Endpoint, error) {
	var e domain.Endpoint
	err := row.Scan(
		&e.ID, &e.TenantID, &e.JobID, &e.Name, &e.BaselineCron, &e.BaselineIntervalMs,
		&e.MinIntervalMs, &e.MaxIntervalMs,
		&e.AIHintIntervalMs, &e.AIHintNextRunAt, &e.AIHintBodyJSON, &e.AIHintBodyExpiresAt,
		&e.AIHintReason, &e.AIHintExpiresAt,
		&e.PausedUntil, &e.ArchivedAt,
		&e.LastRunAt, &e.NextRunAt, &e.FailureCount,
		&e.LockedBy, &e.LockExpiresAt,
		&e.URL, &e.Method, &e.HeadersJSON, &e.BodyJSON, &e.TimeoutMs, &e.MaxExecutionTimeMs, &e.MaxResponseSizeKb,
		&e.Description, &e.BodySchema, &e.LastNotifiedFailureCount,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("scan endpoint: %w", err)
	}
	return &e, nil
}
