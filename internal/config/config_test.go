package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskplan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadFormats(t *testing.T) {
	files := map[string]string{
		"taskplan.json": `{"storage":{"driver":"sqlite","dsn":"/tmp/a.db"},"planner":{"default_capacity":{"weekday":"7.5"},"max_count":10}}`,
		"taskplan.yaml": "storage:\n  driver: sqlite\n  dsn: /tmp/a.db\nplanner:\n  default_capacity:\n    weekday: \"7.5\"\n  max_count: 10\n",
		"taskplan.toml": "[storage]\ndriver = \"sqlite\"\ndsn = \"/tmp/a.db\"\n\n[planner]\nmax_count = 10\n\n[planner.default_capacity]\nweekday = \"7.5\"\n",
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			cfg, err := NewConfigManager(writeFile(t, name, body)).Load()
			require.NoError(t, err)
			assert.Equal(t, "/tmp/a.db", cfg.Storage.DSN)
			assert.Equal(t, 10, cfg.Planner.MaxCount)

			c, err := cfg.Planner.Capacity()
			require.NoError(t, err)
			assert.Equal(t, domain.MustHours("7.5"), c.Weekday)
			assert.Equal(t, domain.WholeHours(4), c.Weekend, "default weekend capacity")
			assert.Equal(t, 60, cfg.Planner.HorizonDays)
			assert.Equal(t, "@daily", cfg.Scheduler.AdvanceSchedule)
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := NewConfigManager(writeFile(t, "c.json", `{"storage":{"driver":"sqlite","path":"x"}}`)).Parse()
	require.Error(t, err)

	_, err = NewConfigManager(writeFile(t, "c.json", `{} {}`)).Parse()
	require.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TASKPLAN_STORAGE_DRIVER", "postgres")
	t.Setenv("TASKPLAN_STORAGE_DSN", "postgres://planner@localhost/taskplan")
	t.Setenv("TASKPLAN_LOG_LEVEL", "debug")
	t.Setenv("TASKPLAN_PLANNER_MAX_COUNT", "7")

	cfg, err := NewConfigManager(writeFile(t, "c.yaml", "storage:\n  driver: sqlite\n  dsn: ./x.db\n")).Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://planner@localhost/taskplan", cfg.Storage.DSN)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Planner.MaxCount)
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := NewConfigManager("").Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestValidateCollectsErrors(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Storage.Driver = "mysql"
	cfg.Planner.DefaultCapacity.Weekday = "25"
	cfg.Planner.MaxAdvance = "soon"
	cfg.Scheduler.AdvanceSchedule = "whenever"
	cfg.Scheduler.Timezone = "Mars/Olympus"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"logging.level", "storage.driver", "planner.default_capacity", "planner.max_advance", "scheduler.advance_schedule", "scheduler.timezone"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NoError(t, Default().Validate())
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := Default()
	newCfg := Default()
	newCfg.Logging.Level = "debug"
	newCfg.Scheduler.AdvanceSchedule = "6h"
	newCfg.Storage.DSN = "postgres://secret@db/x"

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"logging", "scheduler", "storage"}, changed)
	assert.NotEmpty(t, attrs)

	changed, _ = SummarizeConfigChange(oldCfg, Default())
	assert.Empty(t, changed)
}

func TestWatchPublishesChanges(t *testing.T) {
	path := writeFile(t, "taskplan.json", `{"logging":{"level":"info"}}`)
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	// give the watcher a moment to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"level":"not-a-level"}}`), 0o600))
	time.Sleep(400 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "debug", m.Get().Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
}
