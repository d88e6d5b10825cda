package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"taskplan/internal/domain"

	"github.com/jmoiron/sqlx"
)

const chunkCols = `id, task_id, user_id, series_id, day, day_order, duration, finished, notes`

// GetChunk loads a chunk owned by userID.
func (tx *Tx) GetChunk(ctx context.Context, userID, id int64) (domain.Chunk, error) {
	var c domain.Chunk
	err := tx.get(ctx, &c, `SELECT `+chunkCols+` FROM chunks WHERE id = ? AND user_id = ?`, id, userID)
	if isNoRows(err) {
		return domain.Chunk{}, domain.NotFound("chunk", id)
	}
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("get chunk: %w", err)
	}
	return c, nil
}

// ListChunks returns the user's chunks matching f ordered by day and order.
func (tx *Tx) ListChunks(ctx context.Context, userID int64, f domain.ChunkFilter) ([]domain.Chunk, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where := []string{"user_id = ?"}
	args := []any{userID}
	if f.MinDate != nil {
		if f.StrictDate {
			where = append(where, "day >= ?")
		} else {
			where = append(where, "(day >= ? OR NOT finished)")
		}
		args = append(args, *f.MinDate)
	}
	if f.MaxDate != nil {
		where = append(where, "day <= ?")
		args = append(args, *f.MaxDate)
	}
	if len(f.TaskIDs) > 0 {
		where = append(where, "task_id IN (?)")
		args = append(args, f.TaskIDs)
	}
	q := `SELECT ` + chunkCols + ` FROM chunks WHERE ` + strings.Join(where, " AND ") + ` ORDER BY day, day_order, id`
	if len(f.TaskIDs) > 0 {
		var err error
		if q, args, err = sqlx.In(q, args...); err != nil {
			return nil, err
		}
	}
	var out []domain.Chunk
	if err := tx.sel(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return out, nil
}

// MissedChunks returns unfinished chunks dated before today.
func (tx *Tx) MissedChunks(ctx context.Context, userID int64, today domain.Date) ([]domain.Chunk, error) {
	var out []domain.Chunk
	err := tx.sel(ctx, &out, `SELECT `+chunkCols+` FROM chunks
WHERE user_id = ? AND day < ? AND NOT finished ORDER BY day, day_order, id`, userID, today)
	if err != nil {
		return nil, fmt.Errorf("missed chunks: %w", err)
	}
	return out, nil
}

func (tx *Tx) ChunksOfTask(ctx context.Context, taskID int64) ([]domain.Chunk, error) {
	var out []domain.Chunk
	err := tx.sel(ctx, &out, `SELECT `+chunkCols+` FROM chunks WHERE task_id = ? ORDER BY day, day_order, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("chunks of task: %w", err)
	}
	return out, nil
}

// LockDay holds the (user, day) bucket for the rest of the transaction.
// Row locks cannot stop another transaction from inserting into the bucket,
// so postgres takes a transaction-scoped advisory lock on the pair. SQLite
// write transactions are already exclusive.
func (tx *Tx) LockDay(ctx context.Context, userID int64, day domain.Date) error {
	if tx.d != dialectPostgres {
		return nil
	}
	// Truncation to int4 only makes unrelated buckets share a lock.
	epochDay := day.Time().Unix() / 86400
	if _, err := tx.exec(ctx, `SELECT pg_advisory_xact_lock(CAST(? AS integer), CAST(? AS integer))`,
		int32(userID), int32(epochDay)); err != nil {
		return fmt.Errorf("lock day: %w", err)
	}
	return nil
}

// LockBucket locks and returns every chunk of the (user, day) bucket in order.
func (tx *Tx) LockBucket(ctx context.Context, userID int64, day domain.Date) ([]domain.Chunk, error) {
	if err := tx.LockDay(ctx, userID, day); err != nil {
		return nil, err
	}
	var out []domain.Chunk
	err := tx.sel(ctx, &out, `SELECT `+chunkCols+` FROM chunks
WHERE user_id = ? AND day = ? ORDER BY day_order, id`+tx.d.forUpdate(), userID, day)
	if err != nil {
		return nil, fmt.Errorf("lock bucket: %w", err)
	}
	return out, nil
}

// NextDayOrder returns the order that appends to the (user, day) bucket.
// The bucket stays locked until the transaction ends, so the order is still
// free when the caller inserts.
func (tx *Tx) NextDayOrder(ctx context.Context, userID int64, day domain.Date) (int, error) {
	if err := tx.LockDay(ctx, userID, day); err != nil {
		return 0, err
	}
	var maxOrder sql.NullInt64
	err := tx.get(ctx, &maxOrder, `SELECT MAX(day_order) FROM chunks WHERE user_id = ? AND day = ?`, userID, day)
	if err != nil {
		return 0, fmt.Errorf("max day order: %w", err)
	}
	return domain.NextDayOrder(int(maxOrder.Int64), maxOrder.Valid), nil
}

// ChunksAtOrder returns the chunks of a bucket holding order, excluding
// the chunk with id except.
func (tx *Tx) ChunksAtOrder(ctx context.Context, userID int64, day domain.Date, order int, except int64) ([]domain.Chunk, error) {
	var out []domain.Chunk
	err := tx.sel(ctx, &out, `SELECT `+chunkCols+` FROM chunks
WHERE user_id = ? AND day = ? AND day_order = ? AND id <> ? ORDER BY id`, userID, day, order, except)
	if err != nil {
		return nil, fmt.Errorf("chunks at order: %w", err)
	}
	return out, nil
}

// ShiftBucket moves every chunk of the bucket at or after from one position
// up (except the chunk with id except) and returns the moved chunks with
// their new orders.
func (tx *Tx) ShiftBucket(ctx context.Context, userID int64, day domain.Date, from int, except int64) ([]domain.Chunk, error) {
	var moved []domain.Chunk
	err := tx.sel(ctx, &moved, `SELECT `+chunkCols+` FROM chunks
WHERE user_id = ? AND day = ? AND day_order >= ? AND id <> ? ORDER BY day_order, id`, userID, day, from, except)
	if err != nil {
		return nil, fmt.Errorf("shift bucket: %w", err)
	}
	if len(moved) == 0 {
		return nil, nil
	}
	_, err = tx.exec(ctx, `UPDATE chunks SET day_order = day_order + 1
WHERE user_id = ? AND day = ? AND day_order >= ? AND id <> ?`, userID, day, from, except)
	if err != nil {
		return nil, fmt.Errorf("shift bucket: %w", err)
	}
	for i := range moved {
		moved[i].DayOrder++
	}
	return moved, nil
}

func (tx *Tx) InsertChunk(ctx context.Context, c domain.Chunk) (domain.Chunk, error) {
	id, err := tx.insert(ctx, `INSERT INTO chunks(task_id, user_id, series_id, day, day_order, duration, finished, notes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, c.TaskID, c.UserID, c.SeriesID, c.Day, c.DayOrder, c.Duration, c.Finished, c.Notes)
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("insert chunk: %w", err)
	}
	c.ID = id
	return c, nil
}

// InsertChunks bulk-inserts cs and returns them with ids assigned.
func (tx *Tx) InsertChunks(ctx context.Context, cs []domain.Chunk) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, 0, len(cs))
	for _, c := range cs {
		created, err := tx.InsertChunk(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

func (tx *Tx) UpdateChunk(ctx context.Context, c domain.Chunk) error {
	_, err := tx.exec(ctx, `UPDATE chunks SET task_id = ?, series_id = ?, day = ?, day_order = ?, duration = ?, finished = ?, notes = ?
WHERE id = ?`, c.TaskID, c.SeriesID, c.Day, c.DayOrder, c.Duration, c.Finished, c.Notes, c.ID)
	if err != nil {
		return fmt.Errorf("update chunk: %w", err)
	}
	return nil
}

func (tx *Tx) SetChunkOrder(ctx context.Context, id int64, order int) error {
	if _, err := tx.exec(ctx, `UPDATE chunks SET day_order = ? WHERE id = ?`, order, id); err != nil {
		return fmt.Errorf("set chunk order: %w", err)
	}
	return nil
}

func (tx *Tx) DeleteChunk(ctx context.Context, id int64) error {
	if _, err := tx.exec(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete chunk: %w", err)
	}
	return nil
}

// ReassignChunks moves every chunk of task from onto task to.
func (tx *Tx) ReassignChunks(ctx context.Context, from, to int64) error {
	if _, err := tx.exec(ctx, `UPDATE chunks SET task_id = ? WHERE task_id = ?`, to, from); err != nil {
		return fmt.Errorf("reassign chunks: %w", err)
	}
	return nil
}

// ScheduledPerDay sums chunk durations per day for days in [from, to).
// Days without chunks are absent from the map.
func (tx *Tx) ScheduledPerDay(ctx context.Context, userID int64, from, to domain.Date) (map[domain.Date]domain.Hours, error) {
	var rows []struct {
		Day   domain.Date  `db:"day"`
		Total domain.Hours `db:"total"`
	}
	err := tx.sel(ctx, &rows, `SELECT day, CAST(SUM(duration) AS BIGINT) AS total FROM chunks
WHERE user_id = ? AND day >= ? AND day < ? GROUP BY day`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduled per day: %w", err)
	}
	out := make(map[domain.Date]domain.Hours, len(rows))
	for _, r := range rows {
		out[r.Day] = r.Total
	}
	return out, nil
}
