package planner

import (
	"context"
	"testing"
	"time"

	"taskplan/internal/domain"
	"taskplan/internal/eventbus"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekly(start string, end *domain.Date) domain.SeriesInput {
	days := 7
	return domain.SeriesInput{
		Duration: domain.WholeHours(1),
		Start:    domain.MustDate(start),
		End:      end,
		Rule:     domain.RuleParams{Kind: domain.RuleInterval, IntervalDays: &days},
	}
}

func TestCreateSeriesSchedulesFirstBatch(t *testing.T) {
	f := newFixture(t, "2024-03-04", domain.DefaultCapacity)
	ctx := context.Background()
	task := f.task(t, "gym", domain.WholeHours(1))
	f.chunk(t, task.ID, "2024-03-04", domain.WholeHours(1), nil)

	in := weekly("2024-03-04", nil)
	in.TaskID = task.ID
	res, err := f.svc.CreateSeries(ctx, f.user.ID, in)
	require.NoError(t, err)

	// 30 days of advance: Mar 4, 11, 18, 25 and Apr 1.
	require.Len(t, res.Chunks, 5)
	assert.Equal(t, "2024-04-01", res.Series.LastScheduledDay.String())
	assert.False(t, res.Series.Completed)
	assert.Equal(t, 2, res.Chunks[0].DayOrder, "series chunk appends to the bucket")
	for _, c := range res.Chunks {
		require.NotNil(t, c.SeriesID)
		assert.Equal(t, res.Series.ID, *c.SeriesID)
	}

	got, err := f.svc.GetTask(ctx, f.user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WholeHours(6), got.Duration, "task grows by duration x count")

	again, err := f.svc.ScheduleSeries(ctx, f.user.ID, res.Series.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, again.Chunks, "rescheduling from the same cursor creates nothing")
	assert.Equal(t, "2024-04-01", again.Series.LastScheduledDay.String())
	f.checkInvariants(t)
}

func TestCreateSeriesIsAtomic(t *testing.T) {
	f := newFixture(t, "2024-03-04", domain.DefaultCapacity)
	ctx := context.Background()
	task := f.task(t, "gym", domain.WholeHours(1))

	// Reject every series chunk so the first batch fails after the series row
	// is written.
	db, err := sqlx.Open("sqlite", "file:"+f.path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TRIGGER no_series_chunks BEFORE INSERT ON chunks
WHEN NEW.series_id IS NOT NULL BEGIN SELECT RAISE(ABORT, 'series chunks rejected'); END`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	in := weekly("2024-03-04", nil)
	in.TaskID = task.ID
	_, err = f.svc.CreateSeries(ctx, f.user.ID, in)
	require.Error(t, err)

	series, err := f.svc.ListSeries(ctx, f.user.ID, false)
	require.NoError(t, err)
	assert.Empty(t, series, "a failed first batch leaves no series behind")
	got, err := f.svc.GetTask(ctx, f.user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WholeHours(1), got.Duration)
}

func TestScheduleSeriesNoop(t *testing.T) {
	f := newFixture(t, "2024-03-04", domain.DefaultCapacity)
	ctx := context.Background()
	task := f.task(t, "gym", domain.WholeHours(1))

	end := domain.MustDate("2024-03-10")
	in := weekly("2024-03-04", &end)
	in.TaskID = task.ID
	res, err := f.svc.CreateSeries(ctx, f.user.ID, in)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.True(t, res.Series.Completed, "end reached")
	assert.True(t, res.Completed)

	again, err := f.svc.ScheduleSeries(ctx, f.user.ID, res.Series.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, again.Chunks)
	assert.False(t, again.Completed, "already completed before this run")

	open := weekly("2024-03-04", nil)
	open.TaskID = task.ID
	sub := f.bus
	ch, unsub := sub.Subscribe(16, eventbus.ChunksCreated)
	defer unsub()
	f.svc.Reconfigure(Settings{Limits: domain.ScheduleLimits{MaxCount: 1, MaxAdvance: 24 * time.Hour}})
	created, err := f.svc.CreateSeries(ctx, f.user.ID, open)
	require.NoError(t, err)
	require.Len(t, created.Chunks, 1)
	assert.Len(t, ch, 1)

	zero := domain.ScheduleLimits{MaxCount: 0, MaxAdvance: 365 * 24 * time.Hour}
	none, err := f.svc.ScheduleSeries(ctx, f.user.ID, created.Series.ID, &zero)
	require.NoError(t, err)
	assert.Empty(t, none.Chunks)
	assert.Equal(t, "2024-03-04", none.Series.LastScheduledDay.String(), "cursor unchanged")
}

func TestUpdateSeries(t *testing.T) {
	f := newFixture(t, "2024-03-04", domain.DefaultCapacity)
	ctx := context.Background()
	task := f.task(t, "gym", domain.WholeHours(1))

	end := domain.MustDate("2024-03-18")
	in := weekly("2024-03-04", &end)
	in.TaskID = task.ID
	res, err := f.svc.CreateSeries(ctx, f.user.ID, in)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 3)
	require.True(t, res.Series.Completed)

	// A chunk edited by hand keeps its own duration.
	_, err = f.svc.UpdateChunk(ctx, f.user.ID, res.Chunks[0].ID, domain.ChunkFields{Duration: hoursp(domain.MustHours("0.5"))})
	require.NoError(t, err)

	later := domain.MustDate("2024-03-25")
	laterp := &later
	updated, err := f.svc.UpdateSeries(ctx, f.user.ID, res.Series.ID, domain.SeriesFields{
		Duration: hoursp(domain.WholeHours(2)),
		End:      &laterp,
	})
	require.NoError(t, err)
	assert.False(t, updated.Completed, "new end reactivates the series")

	got, err := f.svc.GetTask(ctx, f.user.ID, task.ID)
	require.NoError(t, err)
	// 1 (initial) + 3 (series) - 0.5 (hand edit) + 2 x 1 (two chunks to 2h)
	assert.Equal(t, domain.MustHours("5.5"), got.Duration)
	assert.Equal(t, domain.MustHours("4.5"), got.ScheduledDuration)

	more, err := f.svc.ScheduleSeries(ctx, f.user.ID, res.Series.ID, nil)
	require.NoError(t, err)
	require.Len(t, more.Chunks, 1)
	assert.Equal(t, "2024-03-25", more.Chunks[0].Day.String())

	start := domain.MustDate("2024-03-05")
	_, err = f.svc.UpdateSeries(ctx, f.user.ID, res.Series.ID, domain.SeriesFields{Start: &start})
	assert.ErrorIs(t, err, domain.ErrValidation)
	f.checkInvariants(t)
}

func TestDeleteSeriesKeepsChunks(t *testing.T) {
	f := newFixture(t, "2024-03-04", domain.DefaultCapacity)
	ctx := context.Background()
	task := f.task(t, "gym", domain.WholeHours(1))
	in := weekly("2024-03-04", nil)
	in.TaskID = task.ID
	res, err := f.svc.CreateSeries(ctx, f.user.ID, in)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSeries(ctx, f.user.ID, res.Series.ID))
	_, err = f.svc.GetSeries(ctx, f.user.ID, res.Series.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	chunks, err := f.svc.ListChunks(ctx, f.user.ID, domain.ChunkFilter{TaskIDs: []int64{task.ID}})
	require.NoError(t, err)
	assert.Len(t, chunks, len(res.Chunks))
	for _, c := range chunks {
		assert.Nil(t, c.SeriesID)
	}
}

func TestCreateSeriesValidation(t *testing.T) {
	f := newFixture(t, "2024-03-04", domain.DefaultCapacity)
	task := f.task(t, "gym", domain.WholeHours(1))
	in := weekly("2024-03-01", nil)
	in.TaskID = task.ID
	_, err := f.svc.CreateSeries(context.Background(), f.user.ID, in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = weekly("2024-03-04", nil)
	in.TaskID = task.ID + 42
	_, err = f.svc.CreateSeries(context.Background(), f.user.ID, in)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdvanceAll(t *testing.T) {
	f := newFixture(t, "2024-03-04", domain.DefaultCapacity)
	ctx := context.Background()
	task := f.task(t, "gym", domain.WholeHours(1))

	f.svc.Reconfigure(Settings{Limits: domain.ScheduleLimits{MaxCount: 2, MaxAdvance: 365 * 24 * time.Hour}})
	end := domain.MustDate("2024-03-25")
	finite := weekly("2024-03-04", &end)
	finite.TaskID = task.ID
	_, err := f.svc.CreateSeries(ctx, f.user.ID, finite)
	require.NoError(t, err)
	endless := weekly("2024-03-06", nil)
	endless.TaskID = task.ID
	_, err = f.svc.CreateSeries(ctx, f.user.ID, endless)
	require.NoError(t, err)

	rep, err := f.svc.AdvanceAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Series)
	assert.Equal(t, 4, rep.Chunks)
	assert.Equal(t, 0, rep.Completed)

	rep, err = f.svc.AdvanceAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Series)
	assert.Equal(t, 2, rep.Chunks)
	assert.Equal(t, 1, rep.Completed, "finite series ran out after Mar 25")

	rep, err = f.svc.AdvanceAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Series)
	f.checkInvariants(t)
}
