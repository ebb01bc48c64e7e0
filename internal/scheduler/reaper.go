package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cronicorn/scheduler/internal/metrics"
	"github.com/cronicorn/scheduler/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

// Reaper sweeps zombie runs on a cadence separate from the main tick;
// zombieThreshold must exceed the largest plausible maxExecutionTimeMs
// across endpoints.
type Reaper struct {
	runs            repository.RunRepository
	logger          *slog.Logger
	interval        time.Duration
	zombieThreshold time.Duration
}

func NewReaper(runs repository.RunRepository, logger *slog.Logger, interval, zombieThreshold time.Duration) *Reaper {
	return &Reaper{
		runs:            runs,
		logger:          logger.With("component", "reaper"),
		interval:        interval,
		zombieThreshold: zombieThreshold,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "zombie_threshold", r.zombieThreshold)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	timer := prometheus.NewTimer(metrics.ReaperCycleDuration)
	defer timer.ObserveDuration()

	canceled, err := r.runs.CleanupZombieRuns(ctx, r.zombieThreshold)
	if err != nil {
		r.logger.Error("cleanup zombie runs", "error", err)
		return
	}
	if canceled > 0 {
		metrics.ReaperCanceledTotal.Add(float64(canceled))
		r.logger.Info("canceled zombie runs", "count", canceled)
	}
}
