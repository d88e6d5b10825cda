package storage

import (
	"context"
	"fmt"
	"sort"

	"taskplan/internal/domain"

	"github.com/jmoiron/sqlx"
)

const taskSelect = `
SELECT t.id, t.user_id, t.name, t.duration, t.priority, t.start_day, t.deadline, t.notes,
  CAST(COALESCE((SELECT SUM(c.duration) FROM chunks c WHERE c.task_id = t.id), 0) AS BIGINT) AS scheduled_duration,
  CAST(COALESCE((SELECT SUM(c.duration) FROM chunks c WHERE c.task_id = t.id AND c.finished), 0) AS BIGINT) AS finished_duration
FROM tasks t`

// GetTask loads a task owned by userID with its ledger aggregates and labels.
// Tasks of other users are reported as not found.
func (tx *Tx) GetTask(ctx context.Context, userID, id int64) (domain.Task, error) {
	var t domain.Task
	err := tx.get(ctx, &t, taskSelect+` WHERE t.id = ? AND t.user_id = ?`, id, userID)
	if isNoRows(err) {
		return domain.Task{}, domain.NotFound("task", id)
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	labels, err := tx.labelsOf(ctx, []int64{id})
	if err != nil {
		return domain.Task{}, err
	}
	t.Labels = nonNil(labels[id])
	return t, nil
}

// LockTask takes the exclusive row lock on a task and returns it.
func (tx *Tx) LockTask(ctx context.Context, userID, id int64) (domain.Task, error) {
	var locked int64
	err := tx.get(ctx, &locked, `SELECT id FROM tasks WHERE id = ? AND user_id = ?`+tx.d.forUpdate(), id, userID)
	if isNoRows(err) {
		return domain.Task{}, domain.NotFound("task", id)
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("lock task: %w", err)
	}
	return tx.GetTask(ctx, userID, id)
}

// LockTasks locks several tasks in ascending id order so two transactions
// locking the same pair cannot deadlock.
func (tx *Tx) LockTasks(ctx context.Context, userID int64, ids ...int64) (map[int64]domain.Task, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := make(map[int64]domain.Task, len(sorted))
	for _, id := range sorted {
		if _, ok := out[id]; ok {
			continue
		}
		t, err := tx.LockTask(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, nil
}

// ListTasks returns the user's tasks ordered by priority (highest first).
// incompleteOnly keeps tasks that still have unscheduled duration.
func (tx *Tx) ListTasks(ctx context.Context, userID int64, incompleteOnly bool) ([]domain.Task, error) {
	var all []domain.Task
	if err := tx.sel(ctx, &all, taskSelect+` WHERE t.user_id = ? ORDER BY t.priority DESC, t.id`, userID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	ids := make([]int64, 0, len(all))
	for _, t := range all {
		ids = append(ids, t.ID)
	}
	labels, err := tx.labelsOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if incompleteOnly && t.UnscheduledDuration() <= 0 {
			continue
		}
		t.Labels = nonNil(labels[t.ID])
		out = append(out, t)
	}
	return out, nil
}

func (tx *Tx) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	id, err := tx.insert(ctx, `INSERT INTO tasks(user_id, name, duration, priority, start_day, deadline, notes)
VALUES (?, ?, ?, ?, ?, ?, ?)`, t.UserID, t.Name, t.Duration, t.Priority, t.Start, t.Deadline, t.Notes)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	t.ID = id
	if err := tx.SetTaskLabels(ctx, id, t.Labels); err != nil {
		return domain.Task{}, err
	}
	t.Labels = nonNil(t.Labels)
	return t, nil
}

// UpdateTask writes the editable columns of t. Labels are written separately.
func (tx *Tx) UpdateTask(ctx context.Context, t domain.Task) error {
	_, err := tx.exec(ctx, `UPDATE tasks SET name = ?, duration = ?, priority = ?, start_day = ?, deadline = ?, notes = ?
WHERE id = ?`, t.Name, t.Duration, t.Priority, t.Start, t.Deadline, t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// AddTaskDuration adds delta (which may be negative) to the task duration.
func (tx *Tx) AddTaskDuration(ctx context.Context, id int64, delta domain.Hours) error {
	if delta == 0 {
		return nil
	}
	if _, err := tx.exec(ctx, `UPDATE tasks SET duration = duration + ? WHERE id = ?`, delta, id); err != nil {
		return fmt.Errorf("add task duration: %w", err)
	}
	return nil
}

// DeleteTask removes a task together with its chunks, series and labels.
func (tx *Tx) DeleteTask(ctx context.Context, id int64) error {
	for _, q := range []string{
		`DELETE FROM chunks WHERE task_id = ?`,
		`DELETE FROM series WHERE task_id = ?`,
		`DELETE FROM task_labels WHERE task_id = ?`,
		`DELETE FROM tasks WHERE id = ?`,
	} {
		if _, err := tx.exec(ctx, q, id); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
	}
	return nil
}

func (tx *Tx) SetTaskLabels(ctx context.Context, taskID int64, labels []int64) error {
	if _, err := tx.exec(ctx, `DELETE FROM task_labels WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}
	seen := map[int64]bool{}
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		if _, err := tx.exec(ctx, `INSERT INTO task_labels(task_id, label_id) VALUES (?, ?)`, taskID, l); err != nil {
			return fmt.Errorf("insert label: %w", err)
		}
	}
	return nil
}

func (tx *Tx) labelsOf(ctx context.Context, taskIDs []int64) (map[int64][]int64, error) {
	out := map[int64][]int64{}
	if len(taskIDs) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT task_id, label_id FROM task_labels WHERE task_id IN (?) ORDER BY label_id`, taskIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		TaskID  int64 `db:"task_id"`
		LabelID int64 `db:"label_id"`
	}
	if err := tx.sel(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	for _, r := range rows {
		out[r.TaskID] = append(out[r.TaskID], r.LabelID)
	}
	return out, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// TaskOwner returns the user owning task id regardless of the caller.
func (tx *Tx) TaskOwner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	err := tx.get(ctx, &owner, `SELECT user_id FROM tasks WHERE id = ?`, id)
	if isNoRows(err) {
		return 0, domain.NotFound("task", id)
	}
	if err != nil {
		return 0, fmt.Errorf("task owner: %w", err)
	}
	return owner, nil
}
