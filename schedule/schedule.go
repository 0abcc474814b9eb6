// Package schedule computes when a domain's next tick is due.
//
// A domain either waits a fixed interval after each tick ([Every]) or
// follows a cron expression ([Parse]). Cron expressions use the standard
// five fields and accept descriptors such as "@hourly" and "@every 90s".
package schedule

import (
	"context"
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Schedule returns the next activation time after t.
type Schedule interface {
	Next(t time.Time) time.Time
}

// cronParser accepts standard 5-field cron expressions and descriptors.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Parse parses a cron expression.
func Parse(expr string) (Schedule, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse %q: %w", expr, err)
	}
	return s, nil
}

type every time.Duration

// Every returns a schedule that fires d after the time it is asked about.
// It panics if d is not positive.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		panic(fmt.Sprintf("schedule: non-positive interval %v", d))
	}
	return every(d)
}

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

// For resolves the schedule of a domain: expr when set, otherwise a fixed
// interval.
func For(interval time.Duration, expr string) (Schedule, error) {
	if expr != "" {
		return Parse(expr)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("schedule: interval must be positive, got %v", interval)
	}
	return Every(interval), nil
}

// Wait blocks until s's next activation after now, or until ctx is done.
// It returns the activation time and false when ctx ended the wait.
func Wait(ctx context.Context, s Schedule, now time.Time) (time.Time, bool) {
	next := s.Next(now)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return next, false
	case <-timer.C:
		return next, true
	}
}
