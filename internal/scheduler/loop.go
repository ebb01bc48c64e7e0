package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cronicorn/scheduler/internal/clockx"
	"github.com/cronicorn/scheduler/internal/cronx"
	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/metrics"
	"github.com/cronicorn/scheduler/internal/planner"
	"github.com/cronicorn/scheduler/internal/repository"
)

// Config bundles the tick loop's tunables.
type Config struct {
	BatchSize      int
	LockTTL        time.Duration
	TickInterval   time.Duration
	MaxConcurrency int
}

// Loop is the scheduler tick loop: claims a batch of due endpoints,
// dispatches each within a bounded worker pool, records the run, and
// reschedules via the planner.
type Loop struct {
	id       string
	jobs     repository.EndpointRepository
	runs     repository.RunRepository
	dispatch repository.Dispatcher
	notifier repository.Notifier
	cron     cronx.Cron
	clock    clockx.Clock
	logger   *slog.Logger
	cfg      Config

	degradeAfterStreak int
}

// NewLoop wires the scheduler loop's collaborators.
func NewLoop(
	jobs repository.EndpointRepository,
	runs repository.RunRepository,
	dispatch repository.Dispatcher,
	notifier repository.Notifier,
	cron cronx.Cron,
	clock clockx.Clock,
	logger *slog.Logger,
	cfg Config,
) *Loop {
	hostname, _ := os.Hostname()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}
	return &Loop{
		id:                 fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		jobs:               jobs,
		runs:               runs,
		dispatch:           dispatch,
		notifier:           notifier,
		cron:               cron,
		clock:              clock,
		logger:             logger.With("component", "scheduler_loop"),
		cfg:                cfg,
		degradeAfterStreak: 5,
	}
}

// Start ticks on cfg.TickInterval until ctx is canceled.
func (l *Loop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	l.logger.Info("scheduler loop started", "worker_id", l.id, "tick_interval", l.cfg.TickInterval)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler loop shut down", "worker_id", l.id)
			return
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs exactly one claim-dispatch-reschedule cycle. Exported so tests
// can drive it synchronously.
func (l *Loop) Tick(ctx context.Context) {
	ids, err := l.jobs.ClaimDueEndpoints(ctx, l.id, l.cfg.BatchSize, l.cfg.LockTTL)
	if err != nil {
		l.logger.Error("claim due endpoints", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	l.logger.Info("claimed endpoints", "count", len(ids))

	sem := make(chan struct{}, l.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(endpointID string) {
			defer wg.Done()
			defer func() { <-sem }()
			l.handleEndpoint(ctx, endpointID, domain.SourceScheduler)
		}(id)
	}
	wg.Wait()
}

// handleEndpoint runs a single claimed endpoint end to end: run row,
// dispatch, re-read, plan, write-back. It never panics or propagates a
// dispatch error; only repository errors abort early.
func (l *Loop) handleEndpoint(ctx context.Context, endpointID string, source domain.Source) {
	ep, err := l.jobs.GetEndpoint(ctx, endpointID)
	if err != nil {
		l.logger.Error("get endpoint", "endpoint_id", endpointID, "error", err)
		return
	}

	if lag := l.clock.Now().Sub(ep.NextRunAt); lag > 0 {
		metrics.ClaimLatency.Observe(lag.Seconds())
	}

	runID, err := l.runs.Create(ctx, repository.CreateRunInput{
		EndpointID: ep.ID,
		Attempt:    ep.FailureCount + 1,
		Source:     source,
	})
	if err != nil {
		l.logger.Error("create run", "endpoint_id", ep.ID, "error", err)
		return
	}

	beforeDispatch := l.clock.Now()
	metrics.RunsInFlight.Inc()
	result := l.dispatch.Execute(ctx, ep)
	metrics.RunsInFlight.Dec()
	metrics.RunExecutionDuration.WithLabelValues(string(result.Status)).Observe(float64(result.DurationMs) / 1000)

	if err := l.runs.Finish(ctx, runID, repository.FinishRunInput{
		Status:            result.Status,
		DurationMs:        result.DurationMs,
		StatusCode:        result.StatusCode,
		ResponseBody:      result.ResponseBody,
		MaxResponseSizeKb: ep.MaxResponseSizeKb,
		ErrorMessage:      result.ErrorMessage,
	}); err != nil {
		l.logger.Error("finish run", "run_id", runID, "error", err)
	}
	metrics.RunsCompletedTotal.WithLabelValues(string(result.Status), string(source)).Inc()

	// Re-read to observe any hint the AI planner wrote during execution.
	fresh, err := l.jobs.GetEndpoint(ctx, ep.ID)
	if err != nil {
		l.logger.Error("re-read endpoint", "endpoint_id", ep.ID, "error", err)
		return
	}

	now := l.clock.Now()
	fresh.LastRunAt = &now
	plan, err := planner.PlanNextRun(now, fresh, l.cron)
	if err != nil {
		l.logger.Error("plan next run", "endpoint_id", ep.ID, "error", err)
		return
	}

	// Past-time guard: a long-running dispatch must not put nextRunAt behind
	// the wall clock it finished at. Shift forward by the intended interval
	// (the plan's distance from the pre-dispatch time, at least 1s) rather
	// than re-clamping, so a clamped plan doesn't feed back into itself.
	afterExecution := l.clock.Now()
	if plan.NextRunAt.Before(afterExecution) {
		intended := plan.NextRunAt.Sub(beforeDispatch)
		if intended < time.Second {
			intended = time.Second
		}
		plan.NextRunAt = afterExecution.Add(intended)
	}

	policy := domain.FailureCountReset
	if result.Status != domain.StatusSuccess {
		policy = domain.FailureCountIncrement
	}

	if err := l.jobs.UpdateAfterRun(ctx, ep.ID, repository.UpdateAfterRunInput{
		LastRunAt:          now,
		NextRunAt:          plan.NextRunAt,
		FailureCountPolicy: policy,
		ClearExpiredHints:  true,
	}); err != nil {
		l.logger.Error("update after run", "endpoint_id", ep.ID, "error", err)
		return
	}

	l.maybeNotifyDegraded(ctx, fresh, policy)
}

// maybeNotifyDegraded fires the degradation notifier once per failure
// streak.
func (l *Loop) maybeNotifyDegraded(ctx context.Context, ep *domain.Endpoint, policy domain.FailureCountPolicy) {
	if l.notifier == nil || policy != domain.FailureCountIncrement {
		return
	}
	newCount := ep.FailureCount + 1
	// The count rises by one per failed run and returns to zero on success,
	// so it equals the threshold on exactly one run of each streak.
	if newCount != l.degradeAfterStreak {
		return
	}
	if err := l.notifier.NotifyDegraded(ctx, ep.TenantID, ep.Name, newCount); err != nil {
		l.logger.Warn("notify degraded", "endpoint_id", ep.ID, "error", err)
		return
	}
	if err := l.jobs.MarkNotified(ctx, ep.ID, newCount); err != nil {
		l.logger.Warn("mark notified", "endpoint_id", ep.ID, "error", err)
	}
}
