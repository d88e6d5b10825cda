package planner

import (
	"context"

	"taskplan/internal/domain"
	"taskplan/internal/eventbus"
	"taskplan/internal/storage"
	"taskplan/pkg/logx"
)

// ChunkInput describes a chunk to create. DayOrder nil appends to the
// bucket.
type ChunkInput struct {
	TaskID   int64
	Day      domain.DaySpec
	Duration domain.Hours
	DayOrder *int
	Finished bool
	Notes    string
}

// ChunkChange is the outcome of a chunk mutation: the chunk itself, every
// other chunk whose order moved, and the owning task afterwards.
type ChunkChange struct {
	Chunk domain.Chunk   `json:"chunk"`
	Moved []domain.Chunk `json:"moved,omitempty"`
	Task  domain.Task    `json:"task"`
}

// ResolveDay turns a day token into a date. next_free_capacity runs a
// capacity search for duration.
func (s *Service) ResolveDay(ctx context.Context, userID int64, spec domain.DaySpec, duration domain.Hours) (domain.Date, error) {
	today := s.Today()
	switch spec.Token {
	case "":
		if spec.Date.IsZero() {
			return domain.Date{}, domain.Invalid("day", "this field is required")
		}
		return spec.Date, nil
	case domain.DayToday:
		return today, nil
	case domain.DayTomorrow:
		return today.AddDays(1), nil
	case domain.DayNextFreeCapacity:
		return s.NextDayWithCapacity(ctx, userID, duration)
	default:
		return domain.Date{}, domain.Invalid("day", "unknown day "+string(spec.Token))
	}
}

// CreateChunk schedules a new chunk. When the duration exceeds the task's
// unscheduled duration the task grows by the shortfall. A requested order
// that is already taken shifts that chunk and its successors down.
func (s *Service) CreateChunk(ctx context.Context, userID int64, in ChunkInput) (ChunkChange, error) {
	if in.Duration <= 0 {
		return ChunkChange{}, domain.Invalid("duration", "must be greater than 0")
	}
	// Resolved outside the transaction: capacity search takes no locks.
	day, err := s.ResolveDay(ctx, userID, in.Day, in.Duration)
	if err != nil {
		return ChunkChange{}, err
	}

	var res ChunkChange
	err = s.tx(ctx, "create_chunk", func(tx *storage.Tx) error {
		res = ChunkChange{}
		task, err := tx.LockTask(ctx, userID, in.TaskID)
		if err != nil {
			return err
		}
		if shortfall := in.Duration - task.UnscheduledDuration(); shortfall > 0 {
			if err := tx.AddTaskDuration(ctx, task.ID, shortfall); err != nil {
				return err
			}
		}

		var order int
		if in.DayOrder == nil {
			if order, err = tx.NextDayOrder(ctx, userID, day); err != nil {
				return err
			}
		} else {
			order = *in.DayOrder
			if res.Moved, err = s.makeRoom(ctx, tx, userID, day, order, 0); err != nil {
				return err
			}
		}

		res.Chunk, err = tx.InsertChunk(ctx, domain.Chunk{
			TaskID:   task.ID,
			UserID:   userID,
			Day:      day,
			DayOrder: order,
			Duration: in.Duration,
			Finished: in.Finished,
			Notes:    in.Notes,
		})
		if err != nil {
			return err
		}
		res.Task, err = tx.GetTask(ctx, userID, task.ID)
		return err
	})
	if err != nil {
		return ChunkChange{}, err
	}
	s.log.Debug("chunk created",
		logx.Int64("chunk", res.Chunk.ID), logx.Int64("task", res.Task.ID),
		logx.Stringer("day", res.Chunk.Day), logx.Int("order", res.Chunk.DayOrder))
	s.publish(eventbus.ChunksCreated, userID, []domain.Chunk{res.Chunk})
	return res, nil
}

// makeRoom frees order in the bucket by shifting the holder and everything
// after it, when the order is taken by a chunk other than except.
func (s *Service) makeRoom(ctx context.Context, tx *storage.Tx, userID int64, day domain.Date, order int, except int64) ([]domain.Chunk, error) {
	if _, err := tx.LockBucket(ctx, userID, day); err != nil {
		return nil, err
	}
	holders, err := tx.ChunksAtOrder(ctx, userID, day, order, except)
	if err != nil || len(holders) == 0 {
		return nil, err
	}
	return tx.ShiftBucket(ctx, userID, day, order, except)
}

// UpdateChunk edits a chunk.
//
//   - A duration change moves the task duration by the same delta.
//   - A day change without a new order appends to the new day; with a new
//     order the chunk is inserted there.
//   - An order change on the same day swaps with the single chunk holding
//     that order, or just sets it.
func (s *Service) UpdateChunk(ctx context.Context, userID, id int64, f domain.ChunkFields) (ChunkChange, error) {
	if f.Duration != nil && *f.Duration <= 0 {
		return ChunkChange{}, domain.Invalid("duration", "must be greater than 0")
	}
	var res ChunkChange
	err := s.tx(ctx, "update_chunk", func(tx *storage.Tx) error {
		res = ChunkChange{}
		c, _, err := s.lockChunk(ctx, tx, userID, id)
		if err != nil {
			return err
		}

		if f.Duration != nil && *f.Duration != c.Duration {
			if err := tx.AddTaskDuration(ctx, c.TaskID, *f.Duration-c.Duration); err != nil {
				return err
			}
			c.Duration = *f.Duration
		}

		switch {
		case f.Day != nil && !f.Day.Equal(c.Day):
			c.Day = *f.Day
			if f.DayOrder == nil || *f.DayOrder == c.DayOrder {
				if c.DayOrder, err = tx.NextDayOrder(ctx, userID, c.Day); err != nil {
					return err
				}
			} else {
				if res.Moved, err = s.makeRoom(ctx, tx, userID, c.Day, *f.DayOrder, c.ID); err != nil {
					return err
				}
				c.DayOrder = *f.DayOrder
			}
		case f.DayOrder != nil && *f.DayOrder != c.DayOrder:
			if _, err := tx.LockBucket(ctx, userID, c.Day); err != nil {
				return err
			}
			holders, err := tx.ChunksAtOrder(ctx, userID, c.Day, *f.DayOrder, c.ID)
			if err != nil {
				return err
			}
			if len(holders) == 1 {
				other := holders[0]
				other.DayOrder = c.DayOrder
				if err := tx.SetChunkOrder(ctx, other.ID, other.DayOrder); err != nil {
					return err
				}
				res.Moved = append(res.Moved, other)
			}
			c.DayOrder = *f.DayOrder
		}

		if f.Finished != nil {
			c.Finished = *f.Finished
		}
		if f.Notes != nil {
			c.Notes = *f.Notes
		}
		if err := tx.UpdateChunk(ctx, c); err != nil {
			return err
		}
		res.Chunk = c
		res.Task, err = tx.GetTask(ctx, userID, c.TaskID)
		return err
	})
	if err != nil {
		return ChunkChange{}, err
	}
	s.publish(eventbus.ChunkUpdated, userID, res.Chunk)
	return res, nil
}

// DeleteChunk removes a chunk. Unless postpone is set the task duration
// shrinks by the chunk duration, and a task left with no duration is
// deleted as well; taskDeleted reports that.
func (s *Service) DeleteChunk(ctx context.Context, userID, id int64, postpone bool) (taskDeleted bool, err error) {
	err = s.tx(ctx, "delete_chunk", func(tx *storage.Tx) error {
		taskDeleted = false
		c, task, err := s.lockChunk(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteChunk(ctx, c.ID); err != nil {
			return err
		}
		if postpone {
			return nil
		}
		if task.Duration-c.Duration <= 0 {
			taskDeleted = true
			return tx.DeleteTask(ctx, task.ID)
		}
		return tx.AddTaskDuration(ctx, task.ID, -c.Duration)
	})
	if err != nil {
		return false, err
	}
	s.publish(eventbus.ChunkDeleted, userID, id)
	if taskDeleted {
		s.log.Debug("task deleted with its last chunk", logx.Int64("chunk", id))
	}
	return taskDeleted, nil
}

// SplitResult holds the shortened original, the new chunk right after it
// and every other chunk of the bucket whose order moved.
type SplitResult struct {
	Original domain.Chunk   `json:"original"`
	New      domain.Chunk   `json:"new"`
	Moved    []domain.Chunk `json:"moved,omitempty"`
}

// SplitChunk keeps at on the chunk and moves the rest into a new chunk
// ordered directly after it.
func (s *Service) SplitChunk(ctx context.Context, userID, id int64, at domain.Hours) (SplitResult, error) {
	if at <= 0 {
		return SplitResult{}, domain.Invalid("duration", "must be greater than 0")
	}
	var res SplitResult
	err := s.tx(ctx, "split_chunk", func(tx *storage.Tx) error {
		res = SplitResult{}
		c, _, err := s.lockChunk(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		bucket, err := tx.LockBucket(ctx, userID, c.Day)
		if err != nil {
			return err
		}
		for _, b := range bucket {
			if b.ID == c.ID {
				c = b
			}
		}
		if c.Finished {
			return domain.Precondition("finished chunks cannot be split")
		}
		if at >= c.Duration {
			return domain.Precondition("no duration remains for split")
		}

		if res.Moved, err = tx.ShiftBucket(ctx, userID, c.Day, c.DayOrder+1, c.ID); err != nil {
			return err
		}
		res.New, err = tx.InsertChunk(ctx, domain.Chunk{
			TaskID:   c.TaskID,
			UserID:   userID,
			Day:      c.Day,
			DayOrder: c.DayOrder + 1,
			Duration: c.Duration - at,
		})
		if err != nil {
			return err
		}
		c.Duration = at
		res.Original = c
		return tx.UpdateChunk(ctx, c)
	})
	if err != nil {
		return SplitResult{}, err
	}
	s.log.Debug("chunk split", logx.Int64("chunk", id), logx.Int64("new", res.New.ID), logx.Int("moved", len(res.Moved)))
	s.publish(eventbus.ChunkSplit, userID, res)
	return res, nil
}

func (s *Service) GetChunk(ctx context.Context, userID, id int64) (domain.Chunk, error) {
	return s.store.Reader().GetChunk(ctx, userID, id)
}

func (s *Service) ListChunks(ctx context.Context, userID int64, f domain.ChunkFilter) ([]domain.Chunk, error) {
	return s.store.Reader().ListChunks(ctx, userID, f)
}

// MissedChunks lists unfinished chunks scheduled before today.
func (s *Service) MissedChunks(ctx context.Context, userID int64) ([]domain.Chunk, error) {
	return s.store.Reader().MissedChunks(ctx, userID, s.Today())
}
