package daemon

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// intervalSchedule fires at anchor + k*interval. Unlike cron.Every it keeps
// sub-second precision and a fixed phase, so missed ticks are dropped instead
// of shifting every later tick.
type intervalSchedule struct {
	anchor   time.Time
	interval time.Duration
}

// Next returns the first tick strictly after t.
func (s intervalSchedule) Next(t time.Time) time.Time {
	if t.Before(s.anchor) {
		return s.anchor
	}
	n := t.Sub(s.anchor)/s.interval + 1
	return s.anchor.Add(n * s.interval)
}

// NewSchedule returns the worker's cycle schedule. A non-empty cronSpec (standard
// five-field syntax or descriptors like @hourly) wins over interval.
func NewSchedule(interval time.Duration, cronSpec string, anchor time.Time) (cron.Schedule, error) {
	if cronSpec != "" {
		sched, err := cron.ParseStandard(cronSpec)
		if err != nil {
			return nil, fmt.Errorf("invalid cron spec %q: %w", cronSpec, err)
		}
		return sched, nil
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	return intervalSchedule{anchor: anchor, interval: interval}, nil
}

// ticksBetween counts the ticks in (from, to).
func ticksBetween(sched cron.Schedule, from, to time.Time) int {
	n := 0
	for t := sched.Next(from); t.Before(to); t = sched.Next(t) {
		n++
	}
	return n
}
