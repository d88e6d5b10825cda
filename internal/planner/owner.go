package planner

import (
	"context"
	"errors"
	"fmt"

	"taskplan/internal/domain"
	"taskplan/internal/storage"
)

// maxOwnerChanges bounds how often lockOwner follows a row to a new task
// before giving the transaction back to the retry loop.
const maxOwnerChanges = 3

type taskLocker interface {
	LockTask(ctx context.Context, userID, id int64) (domain.Task, error)
}

// lockOwner locks the task owning a chunk or series and returns the row read
// again under that lock. A merge committing between the first read and the
// lock re-parents the row and deletes its old task; the new owner is locked
// then.
func lockOwner[T any](ctx context.Context, tx taskLocker, userID int64, read func() (T, error), owner func(T) int64) (T, domain.Task, error) {
	var zero T
	row, err := read()
	if err != nil {
		return zero, domain.Task{}, err
	}
	for i := 0; i < maxOwnerChanges; i++ {
		want := owner(row)
		task, lockErr := tx.LockTask(ctx, userID, want)
		if lockErr != nil && !errors.Is(lockErr, domain.ErrNotFound) {
			return zero, domain.Task{}, lockErr
		}
		if row, err = read(); err != nil {
			return zero, domain.Task{}, err
		}
		if owner(row) == want {
			if lockErr != nil {
				return zero, domain.Task{}, lockErr
			}
			return row, task, nil
		}
	}
	return zero, domain.Task{}, fmt.Errorf("%w: owning task keeps changing", storage.ErrRetryable)
}

func (s *Service) lockChunk(ctx context.Context, tx *storage.Tx, userID, id int64) (domain.Chunk, domain.Task, error) {
	return lockOwner(ctx, tx, userID,
		func() (domain.Chunk, error) { return tx.GetChunk(ctx, userID, id) },
		func(c domain.Chunk) int64 { return c.TaskID })
}

// lockSeries also takes the series row lock once its task is held.
func (s *Service) lockSeries(ctx context.Context, tx *storage.Tx, userID, id int64) (domain.Series, error) {
	if _, _, err := lockOwner(ctx, tx, userID,
		func() (domain.Series, error) { return tx.GetSeries(ctx, userID, id) },
		func(sr domain.Series) int64 { return sr.TaskID }); err != nil {
		return domain.Series{}, err
	}
	return tx.LockSeries(ctx, userID, id)
}
