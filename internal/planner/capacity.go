package planner

import (
	"context"

	"taskplan/internal/domain"
)

// NextDayWithCapacity returns the first day from today whose remaining
// capacity holds need. It reads without locks; two concurrent callers may
// pick the same day.
func (s *Service) NextDayWithCapacity(ctx context.Context, userID int64, need domain.Hours) (domain.Date, error) {
	if need <= 0 {
		return domain.Date{}, domain.Invalid("duration", "must be greater than 0")
	}
	c, err := s.capacity.Capacity(ctx, userID)
	if err != nil {
		return domain.Date{}, err
	}
	if need > c.Max() {
		return domain.Date{}, &domain.CapacityExhaustedError{Duration: need}
	}
	horizon := s.Settings().Horizon
	today := s.Today()
	scheduled, err := s.store.Reader().ScheduledPerDay(ctx, userID, today, today.AddDays(horizon))
	if err != nil {
		return domain.Date{}, err
	}
	return domain.FirstDayWithCapacity(c, scheduled, today, horizon, need)
}
