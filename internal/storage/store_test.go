package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"taskplan/internal/domain"
	"taskplan/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "taskplan.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedTask(t *testing.T, st *Store, dur domain.Hours) (domain.User, domain.Task) {
	t.Helper()
	ctx := context.Background()
	var (
		u    domain.User
		task domain.Task
	)
	require.NoError(t, st.WithTx(ctx, func(tx *Tx) error {
		var err error
		if u, err = tx.CreateUser(ctx, "alice", domain.DefaultCapacity); err != nil {
			return err
		}
		task, err = tx.InsertTask(ctx, domain.Task{UserID: u.ID, Name: "write", Duration: dur, Priority: 5, Labels: []int64{3, 1}})
		return err
	}))
	return u, task
}

func TestOpenMigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskplan.db")
	st, err := Open(context.Background(), Config{Driver: "sqlite", DSN: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(context.Background(), Config{Driver: "sqlite", DSN: path}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", st.Driver())
	require.NoError(t, st.Close())

	_, err = Open(context.Background(), Config{Driver: "mysql"}, logx.Nop())
	assert.Error(t, err)
}

func TestTaskAggregatesAndLabels(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	u, task := seedTask(t, st, domain.WholeHours(5))

	day := domain.MustDate("2024-03-04")
	require.NoError(t, st.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.InsertChunks(ctx, []domain.Chunk{
			{TaskID: task.ID, UserID: u.ID, Day: day, DayOrder: 1, Duration: domain.MustHours("1.5"), Finished: true},
			{TaskID: task.ID, UserID: u.ID, Day: day, DayOrder: 2, Duration: domain.WholeHours(2)},
		})
		return err
	}))

	got, err := st.Reader().GetTask(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MustHours("3.5"), got.ScheduledDuration)
	assert.Equal(t, domain.MustHours("1.5"), got.FinishedDuration)
	assert.Equal(t, domain.MustHours("1.5"), got.UnscheduledDuration())
	assert.Equal(t, []int64{1, 3}, got.Labels)

	_, err = st.Reader().GetTask(ctx, u.ID+1, task.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "foreign task must look absent: %v", err)

	incomplete, err := st.Reader().ListTasks(ctx, u.ID, true)
	require.NoError(t, err)
	assert.Len(t, incomplete, 1)
}

func TestWithTxRollsBack(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	u, task := seedTask(t, st, domain.WholeHours(5))

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx *Tx) error {
		if err := tx.AddTaskDuration(ctx, task.ID, domain.WholeHours(10)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := st.Reader().GetTask(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WholeHours(5), got.Duration)
}

func TestBucketOrdering(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	u, task := seedTask(t, st, domain.WholeHours(10))
	day := domain.MustDate("2024-03-04")

	require.NoError(t, st.WithTx(ctx, func(tx *Tx) error {
		next, err := tx.NextDayOrder(ctx, u.ID, day)
		require.NoError(t, err)
		assert.Equal(t, 1, next)

		for i := 1; i <= 3; i++ {
			if _, err := tx.InsertChunk(ctx, domain.Chunk{TaskID: task.ID, UserID: u.ID, Day: day, DayOrder: i, Duration: domain.WholeHours(1)}); err != nil {
				return err
			}
		}
		next, err = tx.NextDayOrder(ctx, u.ID, day)
		require.NoError(t, err)
		assert.Equal(t, 4, next)

		moved, err := tx.ShiftBucket(ctx, u.ID, day, 2, 0)
		require.NoError(t, err)
		require.Len(t, moved, 2)
		assert.Equal(t, 3, moved[0].DayOrder)
		assert.Equal(t, 4, moved[1].DayOrder)

		bucket, err := tx.LockBucket(ctx, u.ID, day)
		require.NoError(t, err)
		orders := []int{}
		for _, c := range bucket {
			orders = append(orders, c.DayOrder)
		}
		assert.Equal(t, []int{1, 3, 4}, orders)
		return nil
	}))
}

func TestListChunksFilter(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	u, task := seedTask(t, st, domain.WholeHours(10))

	require.NoError(t, st.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.InsertChunks(ctx, []domain.Chunk{
			{TaskID: task.ID, UserID: u.ID, Day: domain.MustDate("2024-03-01"), DayOrder: 1, Duration: domain.WholeHours(1)},
			{TaskID: task.ID, UserID: u.ID, Day: domain.MustDate("2024-03-02"), DayOrder: 1, Duration: domain.WholeHours(1), Finished: true},
			{TaskID: task.ID, UserID: u.ID, Day: domain.MustDate("2024-03-05"), DayOrder: 1, Duration: domain.WholeHours(1)},
		})
		return err
	}))

	minDay := domain.MustDate("2024-03-04")
	loose, err := st.Reader().ListChunks(ctx, u.ID, domain.ChunkFilter{MinDate: &minDay})
	require.NoError(t, err)
	assert.Len(t, loose, 2, "unfinished chunk before min_date stays visible")

	strict, err := st.Reader().ListChunks(ctx, u.ID, domain.ChunkFilter{MinDate: &minDay, StrictDate: true, TaskIDs: []int64{task.ID}})
	require.NoError(t, err)
	require.Len(t, strict, 1)
	assert.Equal(t, "2024-03-05", strict[0].Day.String())

	maxDay := domain.MustDate("2024-03-01")
	_, err = st.Reader().ListChunks(ctx, u.ID, domain.ChunkFilter{MinDate: &minDay, MaxDate: &maxDay})
	assert.ErrorIs(t, err, domain.ErrValidation)

	missed, err := st.Reader().MissedChunks(ctx, u.ID, minDay)
	require.NoError(t, err)
	assert.Len(t, missed, 1)

	per, err := st.Reader().ScheduledPerDay(ctx, u.ID, domain.MustDate("2024-03-01"), domain.MustDate("2024-03-03"))
	require.NoError(t, err)
	assert.Equal(t, map[domain.Date]domain.Hours{
		domain.MustDate("2024-03-01"): domain.WholeHours(1),
		domain.MustDate("2024-03-02"): domain.WholeHours(1),
	}, per)
}

func TestSeriesRoundTripAndDetach(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	u, task := seedTask(t, st, domain.WholeHours(10))

	var s domain.Series
	require.NoError(t, st.WithTx(ctx, func(tx *Tx) error {
		var err error
		s, err = tx.InsertSeries(ctx, domain.Series{
			TaskID:   task.ID,
			Duration: domain.WholeHours(1),
			Start:    domain.MustDate("2024-05-01"),
			Rule:     domain.MonthlyWeekdayRule{Weekday: 1, Nth: 5, Months: 1},
		})
		if err != nil {
			return err
		}
		_, err = tx.InsertChunk(ctx, domain.Chunk{TaskID: task.ID, UserID: u.ID, SeriesID: &s.ID, Day: domain.MustDate("2024-05-27"), DayOrder: 1, Duration: domain.WholeHours(1)})
		return err
	}))

	got, err := st.Reader().GetSeries(ctx, u.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Rule, got.Rule)
	assert.Equal(t, u.ID, got.UserID)
	assert.Nil(t, got.LastScheduledDay)

	active, err := st.Reader().ActiveSeries(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, st.WithTx(ctx, func(tx *Tx) error { return tx.DeleteSeries(ctx, s.ID) }))
	chunks, err := st.Reader().ChunksOfTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "deleting a series keeps its chunks")
	assert.Nil(t, chunks[0].SeriesID)
}

func TestClassifyLeavesPlainErrors(t *testing.T) {
	err := errors.New("plain")
	assert.Same(t, err, classify(err))
	assert.Nil(t, classify(nil))
}
