// Package planner implements planNextRun: the pure function that decides
// an endpoint's next fire time from its baseline cadence, AI hints, pause
// state, and min/max guardrails. It performs no I/O and is safe to call
// concurrently from any number of scheduler workers.
package planner

import (
	"time"

	"github.com/cronicorn/scheduler/internal/cronx"
	"github.com/cronicorn/scheduler/internal/domain"
)

// Source is a diagnostic tag identifying which candidate planNextRun chose.
// It never affects behavior — only observability.
type Source string

const (
	SourcePaused           Source = "paused"
	SourceAIOneShot        Source = "ai-oneshot"
	SourceAIInterval       Source = "ai-interval"
	SourceBaselineCron     Source = "baseline-cron"
	SourceBaselineInterval Source = "baseline-interval"
	SourceClampedMin       Source = "clamped-min"
	SourceClampedMax       Source = "clamped-max"
)

// Plan is the result of planNextRun.
type Plan struct {
	NextRunAt time.Time
	Source    Source
}

type candidate struct {
	at     time.Time
	source Source
}

// PlanNextRun computes (nextRunAt, source) for an endpoint at `now`, given
// a Cron port to resolve cron expressions. Pure and deterministic for a
// given (now, endpoint, cron) triple.
//
// Algorithm:
//  1. last = endpoint.LastRunAt ?? now
//  2. build the candidate set: baseline, ai-interval, ai-oneshot
//  3. choose the earliest candidate, floored to now
//  4. clamp to [last+min, last+max] when guardrails are set
//  5. pause dominates everything
func PlanNextRun(now time.Time, ep *domain.Endpoint, cron cronx.Cron) (Plan, error) {
	if ep.Paused(now) {
		return Plan{NextRunAt: *ep.PausedUntil, Source: SourcePaused}, nil
	}

	last := now
	if ep.LastRunAt != nil {
		last = *ep.LastRunAt
	}

	candidates, err := buildCandidates(now, last, ep, cron)
	if err != nil {
		return Plan{}, err
	}

	chosen := earliest(candidates)
	if chosen.at.Before(now) {
		chosen.at = now
	}

	chosen = clamp(chosen, last, ep)

	return Plan{NextRunAt: chosen.at, Source: chosen.source}, nil
}

func buildCandidates(now, last time.Time, ep *domain.Endpoint, cron cronx.Cron) ([]candidate, error) {
	var candidates []candidate

	// Baseline — declared first so ties resolve in its favor (non-binding per spec).
	if ep.BaselineCron != nil && *ep.BaselineCron != "" {
		next, err := cron.Next(*ep.BaselineCron, now)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{at: next, source: SourceBaselineCron})
	} else {
		interval := domain.DefaultBaselineIntervalMs
		if ep.BaselineIntervalMs != nil {
			interval = *ep.BaselineIntervalMs
		}
		candidates = append(candidates, candidate{
			at:     last.Add(time.Duration(interval) * time.Millisecond),
			source: SourceBaselineInterval,
		})
	}

	if ep.HintsFresh(now) {
		if ep.AIHintIntervalMs != nil {
			candidates = append(candidates, candidate{
				at:     last.Add(time.Duration(*ep.AIHintIntervalMs) * time.Millisecond),
				source: SourceAIInterval,
			})
		}
		if ep.AIHintNextRunAt != nil {
			candidates = append(candidates, candidate{at: *ep.AIHintNextRunAt, source: SourceAIOneShot})
		}
	}

	return candidates, nil
}

// earliest returns the candidate with the smallest time, preferring the
// first-declared candidate on ties (baseline first).
func earliest(candidates []candidate) candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.at.Before(best.at) {
			best = c
		}
	}
	return best
}

func clamp(chosen candidate, last time.Time, ep *domain.Endpoint) candidate {
	if ep.MinIntervalMs != nil {
		floor := last.Add(time.Duration(*ep.MinIntervalMs) * time.Millisecond)
		if chosen.at.Before(floor) {
			return candidate{at: floor, source: SourceClampedMin}
		}
	}
	if ep.MaxIntervalMs != nil {
		ceiling := last.Add(time.Duration(*ep.MaxIntervalMs) * time.Millisecond)
		if chosen.at.After(ceiling) {
			return candidate{at: ceiling, source: SourceClampedMax}
		}
	}
	return chosen
}

// ClearExpiredHints nulls out hint fields whose TTL has lapsed at `asOf`.
// A dead hint must neither be read by the planner nor survive the next
// post-run update.
func ClearExpiredHints(ep *domain.Endpoint, asOf time.Time) {
	if ep.AIHintExpiresAt != nil && !ep.AIHintExpiresAt.After(asOf) {
		ep.AIHintIntervalMs = nil
		ep.AIHintNextRunAt = nil
		ep.AIHintReason = nil
		ep.AIHintExpiresAt = nil
	}
	if ep.AIHintBodyExpiresAt != nil && !ep.AIHintBodyExpiresAt.After(asOf) {
		ep.AIHintBodyJSON = nil
		ep.AIHintBodyExpiresAt = nil
	}
}
