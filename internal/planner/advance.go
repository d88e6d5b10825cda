package planner

import (
	"context"
	"errors"
	"time"

	"taskplan/internal/eventbus"
	"taskplan/pkg/logx"

	"golang.org/x/time/rate"
)

// AdvanceReport summarizes one AdvanceAll run.
type AdvanceReport struct {
	Series    int           `json:"series"`
	Chunks    int           `json:"chunks"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Took      time.Duration `json:"took"`
}

// AdvanceAll schedules the next batch of every active series. A failing
// series is logged and counted; only cancellation aborts the run.
func (s *Service) AdvanceAll(ctx context.Context) (AdvanceReport, error) {
	start := s.now()
	active, err := s.store.Reader().ActiveSeries(ctx)
	if err != nil {
		return AdvanceReport{}, err
	}

	var lim *rate.Limiter
	if r := s.Settings().AdvanceRate; r > 0 {
		lim = rate.NewLimiter(r, 1)
	}

	rep := AdvanceReport{Series: len(active)}
	for _, series := range active {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return rep, err
			}
		}
		res, err := s.ScheduleSeries(ctx, series.UserID, series.ID, nil)
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			rep.Failed++
			s.log.Error("advance series failed", logx.Int64("series", series.ID), logx.Err(err))
			continue
		}
		rep.Chunks += len(res.Chunks)
		if res.Completed {
			rep.Completed++
		}
	}
	rep.Took = s.now().Sub(start)

	s.log.Info("advanced series",
		logx.Int("series", rep.Series), logx.Int("chunks", rep.Chunks),
		logx.Int("completed", rep.Completed), logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.Took))
	s.publish(eventbus.AdvanceFinished, 0, rep)
	if rep.Failed > 0 && rep.Failed == rep.Series {
		return rep, errors.New("every series failed to advance")
	}
	return rep, nil
}
