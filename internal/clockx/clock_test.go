package clockx_test

import (
	"testing"
	"time"

	"github.com/cronicorn/scheduler/internal/clockx"
)

func TestFakeClock(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clockx.NewFake(t0)

	if !c.Now().Equal(t0) {
		t.Errorf("expected %v, got %v", t0, c.Now())
	}

	c.Advance(30 * time.Second)
	if want := t0.Add(30 * time.Second); !c.Now().Equal(want) {
		t.Errorf("expected %v after advance, got %v", want, c.Now())
	}

	// Sleep advances instead of blocking.
	c.Sleep(time.Minute)
	if want := t0.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Errorf("expected %v after sleep, got %v", want, c.Now())
	}

	c.Set(t0)
	if !c.Now().Equal(t0) {
		t.Errorf("expected reset to %v, got %v", t0, c.Now())
	}
}

func TestRealClock(t *testing.T) {
	c := clockx.Real()
	before := time.Now()
	now := c.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("real clock %v outside [%v, %v]", now, before, after)
	}
}
