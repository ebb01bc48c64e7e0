package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, input repository.CreateRunInput) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO runs (endpoint_id, status, attempt, started_at, source)
		VALUES ($1, 'running', $2, NOW(), $3)
		RETURNING id`,
		input.EndpointID, input.Attempt, input.Source,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// Finish is idempotent: a run already in a terminal status is left alone.
func (r *RunRepository) Finish(ctx context.Context, runID string, input repository.FinishRunInput) error {
	body := domain.TruncateResponseBody(input.ResponseBody, input.MaxResponseSizeKb)
	_, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET    status        = $2,
		       finished_at   = NOW(),
		       duration_ms   = $3,
		       status_code   = $4,
		       response_body = $5,
		       error_message = $6
		WHERE  id = $1
		  AND  status = 'running'`,
		runID, input.Status, input.DurationMs, input.StatusCode, body, input.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// CleanupZombieRuns transitions runs stuck in running past the threshold
// to canceled with a synthetic error, returning the count reaped.
func (r *RunRepository) CleanupZombieRuns(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET    status        = 'canceled',
		       finished_at   = NOW(),
		       error_message = 'reaped: exceeded zombie threshold'
		WHERE  status = 'running'
		  AND  started_at < NOW() - $1::interval`,
		olderThan.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup zombie runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *RunRepository) ListByEndpointID(ctx context.Context, endpointID string, limit int) ([]*domain.Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, endpoint_id, status, attempt, started_at, finished_at,
		       duration_ms, status_code, response_body, error_message, source
		FROM   runs
		WHERE  endpoint_id = $1
		ORDER  BY started_at DESC
		LIMIT  $2`, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(
			&run.ID, &run.EndpointID, &run.Status, &run.Attempt, &run.StartedAt, &run.FinishedAt,
			&run.DurationMs, &run.StatusCode, &run.ResponseBody, &run.ErrorMessage, &run.Source,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
