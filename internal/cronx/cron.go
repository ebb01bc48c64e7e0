// Package cronx implements the Cron port over robfig/cron's standard
// 5-field parser, UTC throughout.
package cronx

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Cron computes the next fire time for a standard 5-field cron expression.
// The scheduling core depends on this interface, not on robfig/cron directly,
// so tests can substitute a fake that adds a fixed delta.
type Cron interface {
	Next(expr string, from time.Time) (time.Time, error)
}

// CronError wraps a parse failure for a cron expression.
type CronError struct {
	Expr string
	Err  error
}

func (e *CronError) Error() string {
	return fmt.Sprintf("invalid cron expression %q: %v", e.Expr, e.Err)
}

func (e *CronError) Unwrap() error { return e.Err }

type robfigCron struct {
	parser cron.Parser
}

// New returns the production Cron port backed by robfig/cron's standard parser.
func New() Cron {
	return &robfigCron{parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)}
}

func (c *robfigCron) Next(expr string, from time.Time) (time.Time, error) {
	sched, err := c.parser.Parse(expr)
	if err != nil {
		return time.Time{}, &CronError{Expr: expr, Err: err}
	}
	return sched.Next(from.UTC()), nil
}

// Validate parses expr without computing a next time — used at endpoint
// create/update time so a bad cron expression never reaches the scheduler.
func Validate(expr string) error {
	_, err := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(expr)
	if err != nil {
		return &CronError{Expr: expr, Err: err}
	}
	return nil
}
