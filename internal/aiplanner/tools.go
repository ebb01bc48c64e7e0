// Package aiplanner implements the AI planner worker: periodically
// reads recent runs per endpoint, calls an AIClient with a tool surface
// scoped to that one endpoint, and lets the tool dispatcher validate,
// clamp, and write hints back through EndpointRepository. It never writes
// nextRunAt directly — the next scheduler cycle plans from the hints.
package aiplanner

import (
	"context"
	"fmt"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/repository"
)

// Tool names the model may invoke. A closed set — anything else is a
// protocol violation from the model and is rejected.
const (
	ToolProposeInterval = "propose_interval"
	ToolProposeNextTime = "propose_next_time"
	ToolPauseUntil      = "pause_until"
	ToolResetFailures   = "reset_failures"
	ToolClearHints      = "clear_hints"
)

// MaxHintTTL bounds every hint TTL the model may request, regardless of
// what it asks for.
const MaxHintTTL = 24 * time.Hour

// Specs is the tool surface handed to AIClient.Generate for one endpoint
// analysis — a tagged sum of operations with typed (JSON Schema) params.
// The model never sees the repository directly.
func Specs() []repository.ToolSpec {
	return []repository.ToolSpec{
		{
			Name:        ToolProposeInterval,
			Description: "Propose a new polling interval in milliseconds, overriding the baseline cadence until ttlMs elapses.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ms":     map[string]any{"type": "integer", "minimum": 1},
					"reason": map[string]any{"type": "string"},
					"ttlMs":  map[string]any{"type": "integer", "minimum": 1},
				},
				"required": []string{"ms", "reason", "ttlMs"},
			},
		},
		{
			Name:        ToolProposeNextTime,
			Description: "Propose a single one-shot next-run timestamp (RFC3339), overriding the baseline cadence until ttlMs elapses.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"at":     map[string]any{"type": "string", "format": "date-time"},
					"reason": map[string]any{"type": "string"},
					"ttlMs":  map[string]any{"type": "integer", "minimum": 1},
				},
				"required": []string{"at", "reason", "ttlMs"},
			},
		},
		{
			Name:        ToolPauseUntil,
			Description: "Pause the endpoint entirely until the given RFC3339 timestamp.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"at":     map[string]any{"type": "string", "format": "date-time"},
					"reason": map[string]any{"type": "string"},
				},
				"required": []string{"at", "reason"},
			},
		},
		{
			Name:        ToolResetFailures,
			Description: "Reset the endpoint's failure streak to zero without waiting for a successful run.",
			Schema:      map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        ToolClearHints,
			Description: "Clear all active AI hints, reverting the endpoint to its baseline cadence immediately.",
			Schema:      map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

// dispatchTool validates, clamps, and applies a single tool call against
// ep through jobs. Every write is scoped to ep.ID — the model can never
// address another endpoint because the call carries no endpoint id.
func dispatchTool(ctx context.Context, jobs repository.EndpointRepository, ep *domain.Endpoint, call repository.ToolCall, now time.Time) error {
	switch call.Name {
	case ToolProposeInterval:
		ms, err := intArg(call.Arguments, "ms")
		if err != nil {
			return err
		}
		reason := stringArg(call.Arguments, "reason")
		ttl := clampTTL(call.Arguments, now)
		ms = clampInterval(ms, ep)
		return jobs.ApplyIntervalHint(ctx, ep.ID, ms, reason, now.Add(ttl))

	case ToolProposeNextTime:
		at, err := timeArg(call.Arguments, "at")
		if err != nil {
			return err
		}
		reason := stringArg(call.Arguments, "reason")
		ttl := clampTTL(call.Arguments, now)
		return jobs.ScheduleOneShot(ctx, ep.ID, at, reason, now.Add(ttl))

	case ToolPauseUntil:
		at, err := timeArg(call.Arguments, "at")
		if err != nil {
			return err
		}
		reason := stringArg(call.Arguments, "reason")
		return jobs.PauseUntil(ctx, ep.ID, at, reason)

	case ToolResetFailures:
		return jobs.ResetFailures(ctx, ep.ID)

	case ToolClearHints:
		return jobs.ClearHints(ctx, ep.ID)

	default:
		return fmt.Errorf("unknown tool %q", call.Name)
	}
}

// clampInterval soft-clamps a proposed interval into [minIntervalMs,
// maxIntervalMs] at write time.
func clampInterval(ms int64, ep *domain.Endpoint) int64 {
	if ep.MinIntervalMs != nil && ms < *ep.MinIntervalMs {
		ms = *ep.MinIntervalMs
	}
	if ep.MaxIntervalMs != nil && ms > *ep.MaxIntervalMs {
		ms = *ep.MaxIntervalMs
	}
	return ms
}

// clampTTL bounds the requested ttlMs to MaxHintTTL regardless of what
// the model asked for.
func clampTTL(args map[string]any, _ time.Time) time.Duration {
	ms, err := intArg(args, "ttlMs")
	if err != nil || ms <= 0 {
		return MaxHintTTL
	}
	ttl := time.Duration(ms) * time.Millisecond
	if ttl > MaxHintTTL {
		return MaxHintTTL
	}
	return ttl
}

func intArg(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("argument %q is not a number", key)
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func timeArg(args map[string]any, key string) (time.Time, error) {
	s, ok := args[key].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("missing argument %q", key)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", key, err)
	}
	return t, nil
}
