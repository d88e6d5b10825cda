package planner

import (
	"context"

	"taskplan/internal/domain"
	"taskplan/internal/eventbus"
	"taskplan/internal/storage"
	"taskplan/pkg/logx"
)

func (s *Service) CreateTask(ctx context.Context, userID int64, f domain.TaskFields) (domain.Task, error) {
	t, err := domain.NewTask(userID, f)
	if err != nil {
		return domain.Task{}, err
	}
	err = s.tx(ctx, "create_task", func(tx *storage.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		created, err := tx.InsertTask(ctx, t)
		if err != nil {
			return err
		}
		t = created
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	s.log.Debug("task created", logx.Int64("user", userID), logx.Int64("task", t.ID))
	s.publish(eventbus.TaskCreated, userID, t)
	return t, nil
}

func (s *Service) GetTask(ctx context.Context, userID, id int64) (domain.Task, error) {
	return s.store.Reader().GetTask(ctx, userID, id)
}

// ListTasks returns the user's tasks; incompleteOnly keeps those with
// unscheduled duration left.
func (s *Service) ListTasks(ctx context.Context, userID int64, incompleteOnly bool) ([]domain.Task, error) {
	return s.store.Reader().ListTasks(ctx, userID, incompleteOnly)
}

// UpdateTask edits a task. A duration below the already scheduled duration
// is rejected.
func (s *Service) UpdateTask(ctx context.Context, userID, id int64, f domain.TaskFields) (domain.Task, error) {
	var out domain.Task
	err := s.tx(ctx, "update_task", func(tx *storage.Tx) error {
		t, err := tx.LockTask(ctx, userID, id)
		if err != nil {
			return err
		}
		updated, err := f.Apply(t, t.ScheduledDuration)
		if err != nil {
			return err
		}
		if err := tx.UpdateTask(ctx, updated); err != nil {
			return err
		}
		if f.Labels != nil {
			if err := tx.SetTaskLabels(ctx, id, updated.Labels); err != nil {
				return err
			}
		}
		out, err = tx.GetTask(ctx, userID, id)
		return err
	})
	if err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

// DeleteTask removes a task with its chunks and series.
func (s *Service) DeleteTask(ctx context.Context, userID, id int64) error {
	err := s.tx(ctx, "delete_task", func(tx *storage.Tx) error {
		if _, err := tx.LockTask(ctx, userID, id); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Debug("task deleted", logx.Int64("user", userID), logx.Int64("task", id))
	s.publish(eventbus.TaskDeleted, userID, id)
	return nil
}

// MergeResult is the surviving task and every chunk it now owns.
type MergeResult struct {
	Task   domain.Task    `json:"task"`
	Chunks []domain.Chunk `json:"chunks"`
}

// MergeTasks moves every chunk and series of task other onto task id, adds
// other's duration to it and deletes other.
func (s *Service) MergeTasks(ctx context.Context, userID, id, other int64) (MergeResult, error) {
	if id == other {
		return MergeResult{}, domain.Precondition("a task cannot be merged with itself")
	}
	var res MergeResult
	err := s.tx(ctx, "merge_tasks", func(tx *storage.Tx) error {
		owner, err := tx.TaskOwner(ctx, other)
		if err != nil {
			return err
		}
		if owner != userID {
			return domain.Precondition("tasks of different users cannot be merged")
		}
		locked, err := tx.LockTasks(ctx, userID, id, other)
		if err != nil {
			return err
		}
		absorbed := locked[other]
		if err := tx.ReassignChunks(ctx, other, id); err != nil {
			return err
		}
		if err := tx.ReassignSeries(ctx, other, id); err != nil {
			return err
		}
		if err := tx.AddTaskDuration(ctx, id, absorbed.Duration); err != nil {
			return err
		}
		if err := tx.DeleteTask(ctx, other); err != nil {
			return err
		}
		if res.Task, err = tx.GetTask(ctx, userID, id); err != nil {
			return err
		}
		res.Chunks, err = tx.ChunksOfTask(ctx, id)
		return err
	})
	if err != nil {
		return MergeResult{}, err
	}
	s.log.Debug("tasks merged", logx.Int64("task", id), logx.Int64("merged", other))
	s.publish(eventbus.TasksMerged, userID, res)
	return res, nil
}
