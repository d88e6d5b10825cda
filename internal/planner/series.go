package planner

import (
	"context"

	"taskplan/internal/domain"
	"taskplan/internal/eventbus"
	"taskplan/internal/storage"
	"taskplan/pkg/logx"
)

// ScheduleResult is the series after a Schedule run and the chunks the run
// created.
type ScheduleResult struct {
	Series domain.Series  `json:"series"`
	Chunks []domain.Chunk `json:"chunks"`
	// Completed is set when this run exhausted the rule.
	Completed bool `json:"completed"`
}

// CreateSeries stores a new series and schedules its first batch with the
// configured limits. Both happen in one transaction.
func (s *Service) CreateSeries(ctx context.Context, userID int64, in domain.SeriesInput) (ScheduleResult, error) {
	today := s.Today()
	series, err := domain.NewSeries(in, today)
	if err != nil {
		return ScheduleResult{}, err
	}
	series.UserID = userID
	limits := s.Settings().Limits

	var res ScheduleResult
	err = s.tx(ctx, "create_series", func(tx *storage.Tx) error {
		res = ScheduleResult{}
		if _, err := tx.LockTask(ctx, userID, in.TaskID); err != nil {
			return err
		}
		created, err := tx.InsertSeries(ctx, series)
		if err != nil {
			return err
		}
		res, err = s.schedule(ctx, tx, created, today, limits)
		return err
	})
	if err != nil {
		return ScheduleResult{}, err
	}
	s.log.Debug("series created", logx.Int64("series", res.Series.ID),
		logx.String("rule", string(res.Series.Rule.Kind())), logx.Int("chunks", len(res.Chunks)))
	s.published(userID, res)
	return res, nil
}

func (s *Service) GetSeries(ctx context.Context, userID, id int64) (domain.Series, error) {
	return s.store.Reader().GetSeries(ctx, userID, id)
}

func (s *Service) ListSeries(ctx context.Context, userID int64, activeOnly bool) ([]domain.Series, error) {
	return s.store.Reader().ListSeries(ctx, userID, activeOnly)
}

// UpdateSeries changes duration, end or rule parameters of a series.
// Chunks of the series still carrying the old duration take the new one and
// the task duration follows. Changing the end or the parameters reactivates
// a completed series.
func (s *Service) UpdateSeries(ctx context.Context, userID, id int64, f domain.SeriesFields) (domain.Series, error) {
	var out domain.Series
	err := s.tx(ctx, "update_series", func(tx *storage.Tx) error {
		cur, err := s.lockSeries(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		updated, reactivate, err := f.Apply(cur)
		if err != nil {
			return err
		}
		if updated.Duration != cur.Duration {
			n, err := tx.UpdateSeriesChunkDurations(ctx, id, cur.Duration, updated.Duration)
			if err != nil {
				return err
			}
			if err := tx.AddTaskDuration(ctx, cur.TaskID, (updated.Duration - cur.Duration).Mul(n)); err != nil {
				return err
			}
		}
		if reactivate {
			updated.Completed = false
		}
		if err := tx.UpdateSeries(ctx, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Series{}, err
	}
	return out, nil
}

// DeleteSeries removes a series; its chunks remain without the reference.
func (s *Service) DeleteSeries(ctx context.Context, userID, id int64) error {
	return s.tx(ctx, "delete_series", func(tx *storage.Tx) error {
		if _, err := s.lockSeries(ctx, tx, userID, id); err != nil {
			return err
		}
		return tx.DeleteSeries(ctx, id)
	})
}

// ScheduleSeries materializes the next batch of a series from its cursor.
// lim nil uses the configured limits. Running it again from the same cursor
// never recreates earlier chunks; on a completed series it does nothing.
func (s *Service) ScheduleSeries(ctx context.Context, userID, id int64, lim *domain.ScheduleLimits) (ScheduleResult, error) {
	limits := s.Settings().Limits
	if lim != nil {
		limits = *lim
	}
	today := s.Today()

	var res ScheduleResult
	err := s.tx(ctx, "schedule_series", func(tx *storage.Tx) error {
		res = ScheduleResult{}
		cur, err := s.lockSeries(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		res, err = s.schedule(ctx, tx, cur, today, limits)
		return err
	})
	if err != nil {
		return ScheduleResult{}, err
	}
	s.published(userID, res)
	return res, nil
}

// published announces a committed schedule run.
func (s *Service) published(userID int64, res ScheduleResult) {
	if len(res.Chunks) > 0 {
		s.publish(eventbus.ChunksCreated, userID, res.Chunks)
		s.publish(eventbus.SeriesScheduled, userID, res)
	}
	if res.Completed {
		s.log.Info("series completed", logx.Int64("series", res.Series.ID), logx.Int64("task", res.Series.TaskID))
		s.publish(eventbus.SeriesCompleted, userID, res.Series)
	}
}

// schedule runs one batch on a series whose task and row are locked.
func (s *Service) schedule(ctx context.Context, tx *storage.Tx, series domain.Series, today domain.Date, lim domain.ScheduleLimits) (ScheduleResult, error) {
	days, completed := series.Plan(today, lim)
	res := ScheduleResult{Series: series}
	if len(days) == 0 && !completed {
		return res, nil
	}

	chunks := make([]domain.Chunk, 0, len(days))
	for _, day := range days {
		order, err := tx.NextDayOrder(ctx, series.UserID, day)
		if err != nil {
			return res, err
		}
		sid := series.ID
		chunks = append(chunks, domain.Chunk{
			TaskID:   series.TaskID,
			UserID:   series.UserID,
			SeriesID: &sid,
			Day:      day,
			DayOrder: order,
			Duration: series.Duration,
		})
	}
	created, err := tx.InsertChunks(ctx, chunks)
	if err != nil {
		return res, err
	}
	if n := len(created); n > 0 {
		last := created[n-1].Day
		series.LastScheduledDay = &last
		if err := tx.AddTaskDuration(ctx, series.TaskID, series.Duration.Mul(n)); err != nil {
			return res, err
		}
	}
	series.Completed = completed
	if err := tx.UpdateSeries(ctx, series); err != nil {
		return res, err
	}
	return ScheduleResult{Series: series, Chunks: created, Completed: completed}, nil
}
