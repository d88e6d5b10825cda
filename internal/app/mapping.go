package app

import (
	"fmt"
	"strings"
	"time"

	"taskplan/internal/config"
	"taskplan/internal/domain"
	"taskplan/internal/planner"
	"taskplan/internal/scheduler"
	"taskplan/internal/storage"
	"taskplan/pkg/logx"

	"golang.org/x/time/rate"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	dsn := strings.TrimSpace(sc.DSN)
	if dsn == "" {
		return storage.Config{}, fmt.Errorf("storage.dsn is required")
	}
	return storage.Config{
		Driver:       strings.ToLower(strings.TrimSpace(sc.Driver)),
		DSN:          dsn,
		BusyTimeout:  busy,
		MaxOpenConns: sc.MaxOpenConns,
	}, nil
}

func mapPlannerSettings(cfg *config.Config) (planner.Settings, error) {
	pc := cfg.Planner
	capacity, err := pc.Capacity()
	if err != nil {
		return planner.Settings{}, err
	}
	maxAdvance, err := config.ParseDurationField("planner.max_advance", pc.MaxAdvance)
	if err != nil {
		return planner.Settings{}, err
	}
	if maxAdvance == 0 {
		maxAdvance = domain.DefaultScheduleLimits.MaxAdvance
	}
	st := planner.Settings{
		Horizon:         pc.HorizonDays,
		Limits:          domain.ScheduleLimits{MaxCount: pc.MaxCount, MaxAdvance: maxAdvance},
		DefaultCapacity: capacity,
	}
	if pc.AdvanceRate > 0 {
		st.AdvanceRate = rate.Limit(pc.AdvanceRate)
	}
	return st, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, time.Duration, error) {
	timeout, err := config.ParseDurationField("scheduler.timeout", cfg.Scheduler.Timeout)
	if err != nil {
		return scheduler.Config{}, 0, err
	}
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Timezone:       cfg.Scheduler.Timezone,
		DefaultTimeout: timeout,
	}, timeout, nil
}
