package storage

import (
	"context"
	"fmt"

	"taskplan/internal/domain"
)

type seriesRow struct {
	ID               int64        `db:"id"`
	TaskID           int64        `db:"task_id"`
	UserID           int64        `db:"user_id"`
	Duration         domain.Hours `db:"duration"`
	Start            domain.Date  `db:"start_day"`
	End              *domain.Date `db:"end_day"`
	LastScheduledDay *domain.Date `db:"last_scheduled_day"`
	Completed        bool         `db:"completed"`
	domain.RuleParams
}

func (r seriesRow) series() (domain.Series, error) {
	rule, err := r.RuleParams.Rule()
	if err != nil {
		return domain.Series{}, fmt.Errorf("series %d: stored rule: %w", r.ID, err)
	}
	return domain.Series{
		ID:               r.ID,
		TaskID:           r.TaskID,
		UserID:           r.UserID,
		Duration:         r.Duration,
		Start:            r.Start,
		End:              r.End,
		Rule:             rule,
		LastScheduledDay: r.LastScheduledDay,
		Completed:        r.Completed,
	}, nil
}

func toSeries(rows []seriesRow) ([]domain.Series, error) {
	out := make([]domain.Series, 0, len(rows))
	for _, r := range rows {
		s, err := r.series()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

const seriesSelect = `
SELECT s.id, s.task_id, t.user_id, s.duration, s.start_day, s.end_day, s.last_scheduled_day, s.completed,
  s.rule, s.interval_days, s.monthly_day, s.monthly_months, s.monthlyweekday_weekday, s.monthlyweekday_nth
FROM series s JOIN tasks t ON t.id = s.task_id`

func (tx *Tx) InsertSeries(ctx context.Context, s domain.Series) (domain.Series, error) {
	p := domain.ParamsOf(s.Rule)
	id, err := tx.insert(ctx, `INSERT INTO series(task_id, duration, start_day, end_day, rule, interval_days, monthly_day,
  monthly_months, monthlyweekday_weekday, monthlyweekday_nth, last_scheduled_day, completed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.TaskID, s.Duration, s.Start, s.End, p.Kind, p.IntervalDays, p.MonthlyDay,
		p.MonthlyMonths, p.Weekday, p.Nth, s.LastScheduledDay, s.Completed)
	if err != nil {
		return domain.Series{}, fmt.Errorf("insert series: %w", err)
	}
	s.ID = id
	return s, nil
}

// GetSeries loads a series whose task belongs to userID.
func (tx *Tx) GetSeries(ctx context.Context, userID, id int64) (domain.Series, error) {
	var r seriesRow
	err := tx.get(ctx, &r, seriesSelect+` WHERE s.id = ? AND t.user_id = ?`, id, userID)
	if isNoRows(err) {
		return domain.Series{}, domain.NotFound("series", id)
	}
	if err != nil {
		return domain.Series{}, fmt.Errorf("get series: %w", err)
	}
	return r.series()
}

// LockSeries locks a series row for the rest of the transaction.
func (tx *Tx) LockSeries(ctx context.Context, userID, id int64) (domain.Series, error) {
	var locked int64
	err := tx.get(ctx, &locked, `SELECT s.id FROM series s JOIN tasks t ON t.id = s.task_id
WHERE s.id = ? AND t.user_id = ?`+tx.d.forUpdate(), id, userID)
	if isNoRows(err) {
		return domain.Series{}, domain.NotFound("series", id)
	}
	if err != nil {
		return domain.Series{}, fmt.Errorf("lock series: %w", err)
	}
	return tx.GetSeries(ctx, userID, id)
}

// ListSeries returns the user's series; activeOnly drops completed ones.
func (tx *Tx) ListSeries(ctx context.Context, userID int64, activeOnly bool) ([]domain.Series, error) {
	q := seriesSelect + ` WHERE t.user_id = ?`
	if activeOnly {
		q += ` AND NOT s.completed`
	}
	var rows []seriesRow
	if err := tx.sel(ctx, &rows, q+` ORDER BY s.id`, userID); err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return toSeries(rows)
}

// ActiveSeries returns every series of every user that is not completed.
func (tx *Tx) ActiveSeries(ctx context.Context) ([]domain.Series, error) {
	var rows []seriesRow
	if err := tx.sel(ctx, &rows, seriesSelect+` WHERE NOT s.completed ORDER BY s.id`); err != nil {
		return nil, fmt.Errorf("active series: %w", err)
	}
	return toSeries(rows)
}

// UpdateSeries writes the mutable columns of s (duration, end, rule
// parameters, cursor, completion).
func (tx *Tx) UpdateSeries(ctx context.Context, s domain.Series) error {
	p := domain.ParamsOf(s.Rule)
	_, err := tx.exec(ctx, `UPDATE series SET duration = ?, end_day = ?, interval_days = ?, monthly_day = ?,
  monthly_months = ?, monthlyweekday_weekday = ?, monthlyweekday_nth = ?, last_scheduled_day = ?, completed = ?
WHERE id = ?`, s.Duration, s.End, p.IntervalDays, p.MonthlyDay, p.MonthlyMonths, p.Weekday, p.Nth,
		s.LastScheduledDay, s.Completed, s.ID)
	if err != nil {
		return fmt.Errorf("update series: %w", err)
	}
	return nil
}

// DeleteSeries removes a series. Its chunks stay and lose the reference.
func (tx *Tx) DeleteSeries(ctx context.Context, id int64) error {
	if _, err := tx.exec(ctx, `UPDATE chunks SET series_id = NULL WHERE series_id = ?`, id); err != nil {
		return fmt.Errorf("detach series chunks: %w", err)
	}
	if _, err := tx.exec(ctx, `DELETE FROM series WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	return nil
}

// UpdateSeriesChunkDurations rewrites the duration of the series' chunks that
// still carry old and returns how many were changed.
func (tx *Tx) UpdateSeriesChunkDurations(ctx context.Context, seriesID int64, old, dur domain.Hours) (int, error) {
	res, err := tx.exec(ctx, `UPDATE chunks SET duration = ? WHERE series_id = ? AND duration = ?`, dur, seriesID, old)
	if err != nil {
		return 0, fmt.Errorf("update series chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ReassignSeries moves every series of task from onto task to.
func (tx *Tx) ReassignSeries(ctx context.Context, from, to int64) error {
	if _, err := tx.exec(ctx, `UPDATE series SET task_id = ? WHERE task_id = ?`, to, from); err != nil {
		return fmt.Errorf("reassign series: %w", err)
	}
	return nil
}
