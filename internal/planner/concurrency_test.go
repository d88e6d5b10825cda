package planner

import (
	"context"
	"sort"
	"sync"
	"testing"

	"taskplan/internal/domain"
	"taskplan/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentEditsOfOneBucket(t *testing.T) {
	f := newFixture(t, "2024-03-04", domain.DefaultCapacity)
	ctx := context.Background()
	const day = "2024-03-05"

	var tasks []domain.Task
	var initial []domain.Chunk
	for i := 0; i < 4; i++ {
		task := f.task(t, "t", domain.WholeHours(2))
		tasks = append(tasks, task)
		initial = append(initial,
			f.chunk(t, task.ID, day, domain.WholeHours(1), nil),
			f.chunk(t, task.ID, day, domain.WholeHours(1), nil))
	}

	start := make(chan struct{})
	errs := make(chan error, 40)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			in := ChunkInput{TaskID: tasks[i%4].ID, Day: domain.On(domain.MustDate(day)), Duration: domain.WholeHours(1)}
			if i%2 == 1 {
				in.DayOrder = intp(1)
			}
			_, err := f.svc.CreateChunk(ctx, f.user.ID, in)
			errs <- err
		}(i)
	}
	for _, c := range initial {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			<-start
			_, err := f.svc.SplitChunk(ctx, f.user.ID, id, domain.MustHours("0.5"))
			errs <- err
		}(c.ID)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	chunks, err := f.svc.ListChunks(ctx, f.user.ID, domain.ChunkFilter{})
	require.NoError(t, err)
	require.Len(t, chunks, 48)
	orders := make([]int, 0, len(chunks))
	var total domain.Hours
	for _, c := range chunks {
		orders = append(orders, c.DayOrder)
		total += c.Duration
	}
	sort.Ints(orders)
	for i, o := range orders {
		assert.Equal(t, i+1, o, "bucket orders stay dense and distinct")
	}
	assert.Equal(t, domain.WholeHours(40), total, "splits keep the bucket total")

	for _, task := range tasks {
		got, err := f.svc.GetTask(ctx, f.user.ID, task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.WholeHours(10), got.Duration)
		assert.Equal(t, got.Duration, got.ScheduledDuration)
	}
	f.checkInvariants(t)
}

type ownerLocker struct {
	gone   map[int64]bool
	locked []int64
}

func (l *ownerLocker) LockTask(_ context.Context, _ int64, id int64) (domain.Task, error) {
	l.locked = append(l.locked, id)
	if l.gone[id] {
		return domain.Task{}, domain.NotFound("task", id)
	}
	return domain.Task{ID: id}, nil
}

func TestLockOwnerFollowsMergedChunk(t *testing.T) {
	ctx := context.Background()
	owner := func(c domain.Chunk) int64 { return c.TaskID }

	t.Run("merged away before the lock", func(t *testing.T) {
		l := &ownerLocker{gone: map[int64]bool{1: true}}
		reads := 0
		read := func() (domain.Chunk, error) {
			reads++
			if reads == 1 {
				return domain.Chunk{ID: 9, TaskID: 1}, nil
			}
			return domain.Chunk{ID: 9, TaskID: 2}, nil
		}
		c, task, err := lockOwner(ctx, l, 1, read, owner)
		require.NoError(t, err)
		assert.Equal(t, int64(2), c.TaskID)
		assert.Equal(t, int64(2), task.ID)
		assert.Equal(t, []int64{1, 2}, l.locked)
	})

	t.Run("task really gone", func(t *testing.T) {
		l := &ownerLocker{gone: map[int64]bool{1: true}}
		read := func() (domain.Chunk, error) { return domain.Chunk{ID: 9, TaskID: 1}, nil }
		_, _, err := lockOwner(ctx, l, 1, read, owner)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("owner keeps moving", func(t *testing.T) {
		l := &ownerLocker{}
		next := int64(0)
		read := func() (domain.Chunk, error) {
			next++
			return domain.Chunk{ID: 9, TaskID: next}, nil
		}
		_, _, err := lockOwner(ctx, l, 1, read, owner)
		assert.ErrorIs(t, err, storage.ErrRetryable)
		assert.Len(t, l.locked, maxOwnerChanges)
	})
}
