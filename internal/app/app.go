// Package app wires configuration, logging, storage, the planner and the
// advance scheduler into one process.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskplan/internal/config"
	"taskplan/internal/eventbus"
	"taskplan/internal/planner"
	"taskplan/internal/runtime/supervisor"
	"taskplan/internal/scheduler"
	"taskplan/internal/storage"
	"taskplan/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

// advanceJob is the scheduler entry that expands all active series.
const advanceJob = "series.advance"

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.Store

	planner *planner.Service
	sched   *scheduler.Service
}

// New loads the config at cfgPath (empty means defaults plus environment),
// opens storage and builds the services. Nothing runs in the background
// until Start.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLogConfig(cfg))
	log := root.Component("app")

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, sc, root.Component("storage"))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	settings, err := mapPlannerSettings(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	bus := eventbus.New()
	plan := planner.New(store, planner.Options{
		Settings: settings,
		Log:      root.Component("planner"),
		Bus:      bus,
		Location: cfg.Planner.Location(),
	})

	schedCfg, _, err := mapSchedulerConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	sched := scheduler.New(schedCfg, root)

	cfgm.SetLogger(root)
	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		planner: plan,
		sched:   sched,
	}, nil
}

func (a *App) Planner() *planner.Service { return a.planner }

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Close releases storage and log files of an app that was never started.
func (a *App) Close() error {
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}

// Done is closed when the app supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the long-lived parts: the advance trigger, config hot reload,
// event logging and the systemd watchdog.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	cfg := a.cfgm.Get()
	if err := a.registerAdvance(cfg); err != nil {
		return err
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Int64("user", e.UserID), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)

	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return
				case <-t.C:
					sdNotify(a.log, daemon.SdNotifyWatchdog)
				}
			}
		})
	}

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("app started",
		logx.String("storage", a.store.Driver()),
		logx.Bool("scheduler", a.sched.Enabled()),
		logx.String("advance_schedule", cfg.Scheduler.AdvanceSchedule),
	)
	return nil
}

func (a *App) registerAdvance(cfg *config.Config) error {
	_, timeout, err := mapSchedulerConfig(cfg)
	if err != nil {
		return err
	}
	err = a.sched.Add(advanceJob, cfg.Scheduler.AdvanceSchedule, timeout, func(ctx context.Context) error {
		_, err := a.planner.AdvanceAll(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("scheduler.advance_schedule: %w", err)
	}
	return nil
}

// applyConfig applies the live-reloadable sections. Storage changes need a
// restart.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	sdNotify(a.log, daemon.SdNotifyReloading)
	defer sdNotify(a.log, daemon.SdNotifyReady)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(next))
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "planner":
			st, err := mapPlannerSettings(next)
			if err != nil {
				a.log.Warn("invalid planner config; keeping previous", logx.Err(err))
				continue
			}
			a.planner.Reconfigure(st)
		case "scheduler":
			a.applyScheduler(ctx, prev, next)
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) applyScheduler(ctx context.Context, prev, next *config.Config) {
	sc, _, err := mapSchedulerConfig(next)
	if err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
		return
	}
	wasEnabled := a.sched.Enabled()
	a.sched.Apply(sc)

	if prev.Scheduler.AdvanceSchedule != next.Scheduler.AdvanceSchedule || prev.Scheduler.Timeout != next.Scheduler.Timeout {
		if err := a.registerAdvance(next); err != nil {
			a.log.Warn("advance schedule rejected", logx.Err(err))
		}
	}

	switch {
	case wasEnabled && !sc.Enabled:
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	case !wasEnabled && sc.Enabled:
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}
}

// Stop shuts down in reverse dependency order; each step is bounded so one
// component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)
	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
