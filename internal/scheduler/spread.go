package scheduler

import (
	"hash/fnv"
	"time"

	"github.com/robfig/cron/v3"
)

const maxStartupSpread = 30 * time.Second

// spreadSchedule delays the first run of an interval schedule; later runs
// follow base.
type spreadSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *spreadSchedule) Next(t time.Time) time.Time {
	if !s.first.IsZero() && t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

// startupJitter derives a stable delay in [0, min(every, 30s)) from name so
// a restart keeps the same offsets.
func startupJitter(every time.Duration, name string) time.Duration {
	spread := min(every, maxStartupSpread)
	if spread <= 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return time.Duration(h.Sum64() % uint64(spread))
}

func makeIntervalScheduleWithSpread(every time.Duration, now time.Time, name string) (cron.Schedule, time.Duration) {
	base := cron.Every(every)
	jitter := startupJitter(every, name)
	if jitter == 0 {
		return base, 0
	}
	return &spreadSchedule{base: base, first: now.Add(every + jitter)}, jitter
}
