package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"taskplan/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRunsIntervalJob(t *testing.T) {
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop())
	var n atomic.Int32
	require.NoError(t, s.Add("tick", "every:50ms", time.Second, func(ctx context.Context) error {
		n.Add(1)
		return nil
	}))
	s.Start(context.Background())
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return n.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "tick", snap[0].Name)
	assert.Equal(t, "@every 50ms", snap[0].Spec)
}

func TestServiceSkipsOverlappingRun(t *testing.T) {
	s := New(Config{}, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	release := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, s.AddDaily("slow", "03:00", 0, func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}))

	s.mu.Lock()
	d := s.defs[0]
	s.mu.Unlock()
	s.run(d)
	require.Eventually(t, func() bool { return d.running.Load() }, time.Second, 5*time.Millisecond)
	s.run(d)
	close(release)
	require.Eventually(t, func() bool { return !d.running.Load() }, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap[0].Runs)
	assert.Equal(t, uint64(1), snap[0].Skipped)
	assert.Equal(t, "0 3 * * *", snap[0].Spec)
}

func TestServiceRecordsErrorsAndPanics(t *testing.T) {
	s := New(Config{DefaultTimeout: time.Second}, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	require.NoError(t, s.Add("boom", "0 3 * * *", 0, func(ctx context.Context) error {
		panic("kaboom")
	}))
	require.NoError(t, s.Add("fail", "@hourly", 0, func(ctx context.Context) error {
		return errors.New("nope")
	}))
	s.mu.Lock()
	defs := append([]scheduleDef(nil), s.defs...)
	s.mu.Unlock()
	for _, d := range defs {
		s.run(d)
	}
	require.Eventually(t, func() bool {
		for _, info := range s.Snapshot() {
			if info.Runs == 0 {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	byName := map[string]ScheduleInfo{}
	for _, info := range s.Snapshot() {
		byName[info.Name] = info
	}
	assert.Contains(t, byName["boom"].LastErr, "kaboom")
	assert.Equal(t, "nope", byName["fail"].LastErr)
}

func TestServiceAddRejectsBadInput(t *testing.T) {
	s := New(Config{}, logx.Nop())
	job := func(context.Context) error { return nil }
	assert.Error(t, s.Add("", "1h", 0, job))
	assert.Error(t, s.Add("x", "1h", 0, nil))
	assert.Error(t, s.Add("x", "61 * * * *", 0, job))
	assert.Error(t, s.AddDaily("x", "25:00", 0, job))

	require.NoError(t, s.Add("x", "1h", 0, job))
	require.NoError(t, s.Add("x", "2h", 0, job))
	assert.Len(t, s.Snapshot(), 1)
	assert.True(t, s.Remove("x"))
	assert.False(t, s.Remove("x"))
}

func TestServiceApplyTimezoneRestart(t *testing.T) {
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	require.NoError(t, s.Add("daily", "0 3 * * *", 0, func(context.Context) error { return nil }))
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.Apply(Config{Timezone: "Asia/Tokyo"})
	next := s.Snapshot()[0].Next
	require.False(t, next.IsZero())
	assert.Equal(t, 3, next.In(time.FixedZone("JST", 9*3600)).Hour())
}
