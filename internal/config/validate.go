package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskplan/internal/domain"
	"taskplan/internal/scheduler"
	"taskplan/pkg/logx"
)

// Validate reports every problem in c, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if !logx.ValidLevel(c.Logging.Level) {
		add("logging.level: unknown level %q", c.Logging.Level)
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		add("logging.file.path: required when file logging is enabled")
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		add("storage.driver: unsupported driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		add("storage.dsn: required")
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.MaxOpenConns < 0 {
		add("storage.max_open_conns: must be >= 0")
	}

	if _, err := loadLocation(c.Planner.Timezone); err != nil {
		add("planner.timezone: %v", err)
	}
	if _, err := c.Planner.Capacity(); err != nil {
		errs = append(errs, err)
	}
	if c.Planner.HorizonDays < 1 {
		add("planner.horizon_days: must be >= 1")
	}
	if c.Planner.MaxCount < 0 {
		add("planner.max_count: must be >= 0")
	}
	if _, err := ParseDurationField("planner.max_advance", c.Planner.MaxAdvance); err != nil {
		errs = append(errs, err)
	}
	if c.Planner.AdvanceRate < 0 {
		add("planner.advance_rate: must be >= 0")
	}

	if _, err := scheduler.ParseSchedule(c.Scheduler.AdvanceSchedule); err != nil {
		add("scheduler.advance_schedule: %v", err)
	}
	if _, err := loadLocation(c.Scheduler.Timezone); err != nil {
		add("scheduler.timezone: %v", err)
	}
	if _, err := ParseDurationField("scheduler.timeout", c.Scheduler.Timeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Capacity parses the default capacity for new users.
func (p PlannerConfig) Capacity() (domain.Capacity, error) {
	wd, err := domain.ParseHours(p.DefaultCapacity.Weekday)
	if err != nil {
		return domain.Capacity{}, fmt.Errorf("planner.default_capacity.weekday: %w", err)
	}
	we, err := domain.ParseHours(p.DefaultCapacity.Weekend)
	if err != nil {
		return domain.Capacity{}, fmt.Errorf("planner.default_capacity.weekend: %w", err)
	}
	c := domain.Capacity{Weekday: wd, Weekend: we}
	if err := c.Validate(); err != nil {
		return domain.Capacity{}, fmt.Errorf("planner.default_capacity: %w", err)
	}
	return c, nil
}

// Location returns the planner timezone; invalid names fall back to Local
// (Validate reports them).
func (p PlannerConfig) Location() *time.Location {
	loc, err := loadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
