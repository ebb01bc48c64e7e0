package cronx_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cronicorn/scheduler/internal/cronx"
)

func TestNext_TopOfHour(t *testing.T) {
	c := cronx.New()
	from := time.Date(2025, 1, 1, 1, 0, 30, 0, time.UTC)

	next, err := c.Next("0 * * * *", from)
	if err != nil {
		t.Fatalf("next: %v", err)
	}

	want := time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_EveryFiveMinutes(t *testing.T) {
	c := cronx.New()
	from := time.Date(2025, 6, 15, 9, 3, 0, 0, time.UTC)

	next, err := c.Next("*/5 * * * *", from)
	if err != nil {
		t.Fatalf("next: %v", err)
	}

	want := time.Date(2025, 6, 15, 9, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_NormalizesToUTC(t *testing.T) {
	c := cronx.New()
	loc := time.FixedZone("UTC+3", 3*3600)
	// 04:30 UTC+3 is 01:30 UTC; the next hourly fire is 02:00 UTC.
	from := time.Date(2025, 1, 1, 4, 30, 0, 0, loc)

	next, err := c.Next("0 * * * *", from)
	if err != nil {
		t.Fatalf("next: %v", err)
	}

	want := time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_InvalidExpression(t *testing.T) {
	c := cronx.New()

	for _, expr := range []string{"", "not a cron", "* * * *", "61 * * * *"} {
		_, err := c.Next(expr, time.Now())
		if err == nil {
			t.Errorf("%q: expected an error", expr)
			continue
		}
		var cronErr *cronx.CronError
		if !errors.As(err, &cronErr) {
			t.Errorf("%q: expected *CronError, got %T", expr, err)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := cronx.Validate("*/10 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := cronx.Validate("banana"); err == nil {
		t.Error("invalid expression accepted")
	}
}
