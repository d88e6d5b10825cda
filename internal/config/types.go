package config

// Config is the on-disk configuration. Durations and hour amounts are strings
// ("90s", "7.5") so all formats share one shape.
//
// Environment variables (TASKPLAN_*) override file values.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Planner   PlannerConfig   `json:"planner"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type LoggingConfig struct {
	Level   string      `json:"level" env:"TASKPLAN_LOG_LEVEL"`
	Console bool        `json:"console" env:"TASKPLAN_LOG_CONSOLE"`
	JSON    bool        `json:"json,omitempty" env:"TASKPLAN_LOG_JSON"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled" env:"TASKPLAN_LOG_FILE_ENABLED"`
	Path    string `json:"path" env:"TASKPLAN_LOG_FILE"`
}

// StorageConfig selects the database.
//
// Example:
//
//	"storage": { "driver": "sqlite", "dsn": "./taskplan.db" }
//	"storage": { "driver": "postgres", "dsn": "postgres://planner@db/taskplan" }
type StorageConfig struct {
	Driver       string `json:"driver" env:"TASKPLAN_STORAGE_DRIVER"`
	DSN          string `json:"dsn" env:"TASKPLAN_STORAGE_DSN"`
	BusyTimeout  string `json:"busy_timeout,omitempty" env:"TASKPLAN_STORAGE_BUSY_TIMEOUT"` // sqlite
	MaxOpenConns int    `json:"max_open_conns,omitempty" env:"TASKPLAN_STORAGE_MAX_OPEN_CONNS"`
}

type PlannerConfig struct {
	// Timezone decides which calendar day is "today". Empty means Local.
	Timezone        string         `json:"timezone,omitempty" env:"TASKPLAN_TIMEZONE"`
	DefaultCapacity CapacityConfig `json:"default_capacity"`
	// HorizonDays bounds Capacity Search.
	HorizonDays int `json:"horizon_days,omitempty" env:"TASKPLAN_PLANNER_HORIZON_DAYS"`
	// MaxCount and MaxAdvance bound one series expansion.
	MaxCount   int    `json:"max_count,omitempty" env:"TASKPLAN_PLANNER_MAX_COUNT"`
	MaxAdvance string `json:"max_advance,omitempty" env:"TASKPLAN_PLANNER_MAX_ADVANCE"`
	// AdvanceRate is series per second during advance-all; 0 is unlimited.
	AdvanceRate float64 `json:"advance_rate,omitempty" env:"TASKPLAN_PLANNER_ADVANCE_RATE"`
}

// CapacityConfig holds decimal hour strings ("8", "4.5").
type CapacityConfig struct {
	Weekday string `json:"weekday,omitempty" env:"TASKPLAN_CAPACITY_WEEKDAY"`
	Weekend string `json:"weekend,omitempty" env:"TASKPLAN_CAPACITY_WEEKEND"`
}

// SchedulerConfig controls the periodic advance trigger.
type SchedulerConfig struct {
	Enabled bool `json:"enabled" env:"TASKPLAN_SCHEDULER_ENABLED"`
	// AdvanceSchedule accepts cron ("0 3 * * *", "@daily"), a duration ("6h")
	// or HH:MM as an interval.
	AdvanceSchedule string `json:"advance_schedule,omitempty" env:"TASKPLAN_ADVANCE_SCHEDULE"`
	Timezone        string `json:"timezone,omitempty" env:"TASKPLAN_SCHEDULER_TIMEZONE"`
	// Timeout bounds one advance run; "0s" disables it.
	Timeout string `json:"timeout,omitempty" env:"TASKPLAN_SCHEDULER_TIMEOUT"`
}

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "sqlite", DSN: "./taskplan.db"},
		Planner: PlannerConfig{
			DefaultCapacity: CapacityConfig{Weekday: "8", Weekend: "4"},
			HorizonDays:     60,
			MaxCount:        50,
			MaxAdvance:      "8760h",
		},
		Scheduler: SchedulerConfig{Enabled: true, AdvanceSchedule: "@daily", Timeout: "10m"},
	}
}

// fillDefaults sets zero fields a file may leave out.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = def.Storage.Driver
	}
	if c.Storage.DSN == "" && c.Storage.Driver == def.Storage.Driver {
		c.Storage.DSN = def.Storage.DSN
	}
	if c.Planner.DefaultCapacity.Weekday == "" {
		c.Planner.DefaultCapacity.Weekday = def.Planner.DefaultCapacity.Weekday
	}
	if c.Planner.DefaultCapacity.Weekend == "" {
		c.Planner.DefaultCapacity.Weekend = def.Planner.DefaultCapacity.Weekend
	}
	if c.Planner.HorizonDays == 0 {
		c.Planner.HorizonDays = def.Planner.HorizonDays
	}
	if c.Planner.MaxCount == 0 {
		c.Planner.MaxCount = def.Planner.MaxCount
	}
	if c.Planner.MaxAdvance == "" {
		c.Planner.MaxAdvance = def.Planner.MaxAdvance
	}
	if c.Scheduler.AdvanceSchedule == "" {
		c.Scheduler.AdvanceSchedule = def.Scheduler.AdvanceSchedule
	}
}
