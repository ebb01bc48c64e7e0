package aiplanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/metrics"
	"github.com/cronicorn/scheduler/internal/repository"
)

// Config bundles the AI planner worker's tunables.
type Config struct {
	Interval         time.Duration
	MinFailureStreak int
	RunHistoryLimit  int
}

// Worker is the AI planner worker. On each tick it picks endpoints
// eligible for analysis, checks quota, asks the AIClient for a plan
// scoped to that endpoint, and applies the model's tool calls through the
// tool dispatcher.
type Worker struct {
	jobs   repository.EndpointRepository
	runs   repository.RunRepository
	quota  repository.QuotaGuard
	ai     repository.AIClient
	logger *slog.Logger
	cfg    Config
}

func NewWorker(
	jobs repository.EndpointRepository,
	runs repository.RunRepository,
	quota repository.QuotaGuard,
	ai repository.AIClient,
	logger *slog.Logger,
	cfg Config,
) *Worker {
	if cfg.RunHistoryLimit <= 0 {
		cfg.RunHistoryLimit = 10
	}
	return &Worker{
		jobs:   jobs,
		runs:   runs,
		quota:  quota,
		ai:     ai,
		logger: logger.With("component", "ai_planner"),
		cfg:    cfg,
	}
}

// Start ticks on cfg.Interval until ctx is canceled. Candidate discovery
// is left to the caller; this worker analyzes whatever it's handed.
func (w *Worker) Start(ctx context.Context, candidates func(ctx context.Context) ([]*domain.Endpoint, error)) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("ai planner worker started", "interval", w.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ai planner worker shut down")
			return
		case <-ticker.C:
			eps, err := candidates(ctx)
			if err != nil {
				w.logger.Error("list analysis candidates", "error", err)
				continue
			}
			for _, ep := range eps {
				w.Analyze(ctx, ep)
			}
		}
	}
}

// Eligible applies the default candidate policy: a failure streak at or
// above MinFailureStreak.
func (w *Worker) Eligible(ep *domain.Endpoint) bool {
	return ep.FailureCount >= w.cfg.MinFailureStreak
}

// Analyze runs one endpoint-scoped AI planning pass. It isolates errors
// per endpoint so one failure never stops the rest of the fleet.
func (w *Worker) Analyze(ctx context.Context, ep *domain.Endpoint) {
	logger := w.logger.With("endpoint_id", ep.ID, "tenant_id", ep.TenantID)

	ok, err := w.quota.CanProceed(ctx, ep.TenantID)
	if err != nil {
		logger.Error("quota check", "error", err)
		metrics.AIPlannerInvocationsTotal.WithLabelValues("quota_error").Inc()
		return
	}
	if !ok {
		logger.Debug("quota exhausted, skipping analysis")
		metrics.AIPlannerInvocationsTotal.WithLabelValues("quota_denied").Inc()
		return
	}

	history, err := w.runs.ListByEndpointID(ctx, ep.ID, w.cfg.RunHistoryLimit)
	if err != nil {
		logger.Error("list run history", "error", err)
		metrics.AIPlannerInvocationsTotal.WithLabelValues("history_error").Inc()
		return
	}

	result, err := w.ai.Generate(ctx, repository.GenerateInput{
		Prompt: buildPrompt(ep, history),
		Tools:  Specs(),
	})
	if err != nil {
		logger.Error("ai generate", "error", err)
		metrics.AIPlannerInvocationsTotal.WithLabelValues("generate_error").Inc()
		return
	}

	metrics.AIPlannerTokensTotal.WithLabelValues("input").Add(float64(result.InputTokens))
	metrics.AIPlannerTokensTotal.WithLabelValues("output").Add(float64(result.OutputTokens))
	if err := w.quota.RecordUsage(ctx, ep.TenantID, result.InputTokens+result.OutputTokens); err != nil {
		logger.Warn("record quota usage", "error", err)
	}

	now := time.Now()
	applied := 0
	for _, call := range result.ToolCalls {
		if err := dispatchTool(ctx, w.jobs, ep, call, now); err != nil {
			logger.Warn("dispatch tool call", "tool", call.Name, "error", err)
			metrics.AIPlannerToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
			continue
		}
		metrics.AIPlannerToolCallsTotal.WithLabelValues(call.Name, "applied").Inc()
		applied++
	}

	metrics.AIPlannerInvocationsTotal.WithLabelValues("ok").Inc()
	logger.Info("analysis complete", "tool_calls", len(result.ToolCalls), "applied", applied)
}

// buildPrompt summarizes an endpoint's configuration and recent run
// history for the model. Response bodies are already truncated by the
// time they reach here; the planner never sees more than what the
// dispatcher captured.
func buildPrompt(ep *domain.Endpoint, history []*domain.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Endpoint %q (%s %s)\n", ep.Name, ep.Method, ep.URL)
	if ep.Description != nil {
		fmt.Fprintf(&b, "Description: %s\n", *ep.Description)
	}
	fmt.Fprintf(&b, "Current failure streak: %d\n", ep.FailureCount)
	fmt.Fprintf(&b, "Recent runs (most recent first):\n")
	for _, r := range history {
		status := string(r.Status)
		code := "n/a"
		if r.StatusCode != nil {
			code = fmt.Sprintf("%d", *r.StatusCode)
		}
		errMsg := ""
		if r.ErrorMessage != nil {
			errMsg = " err=" + *r.ErrorMessage
		}
		fmt.Fprintf(&b, "- %s status=%s code=%s%s\n", r.StartedAt.Format(time.RFC3339), status, code, errMsg)
	}
	b.WriteString("Decide whether to adjust the polling cadence, pause, or reset the failure streak.")
	return b.String()
}
