package ics

import (
	"fmt"
	"time"

	"taskplan/internal/domain"

	"github.com/teambition/rrule-go"
)

// weekdays is indexed by time.Weekday, not by the stored monday-based number.
var weekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RuleOption renders the recurrence of s as an RFC 5545 rule anchored at
// s.Start.
//
// Monthly days past 28 and monthly weekdays past the 4th clamp to the last
// candidate of the month, the same way domain.Series.ApplyRule does. Those
// are expressed with BYSETPOS=-1 over the candidate set.
func RuleOption(s domain.Series) (rrule.ROption, error) {
	opt := rrule.ROption{Dtstart: s.Start.Time()}
	if s.End != nil {
		opt.Until = s.End.Time()
	}
	switch r := s.Rule.(type) {
	case domain.IntervalRule:
		opt.Freq = rrule.DAILY
		opt.Interval = r.Days
	case domain.MonthlyRule:
		opt.Freq = rrule.MONTHLY
		opt.Interval = r.Months
		if r.Day <= 28 {
			opt.Bymonthday = []int{r.Day}
		} else {
			for d := 28; d <= r.Day; d++ {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
			opt.Bysetpos = []int{-1}
		}
	case domain.MonthlyWeekdayRule:
		opt.Freq = rrule.MONTHLY
		opt.Interval = r.Months
		nth := r.Nth
		if nth > 4 {
			nth = -1
		}
		opt.Byweekday = []rrule.Weekday{weekdays[r.Weekday].Nth(nth)}
	default:
		return rrule.ROption{}, fmt.Errorf("unsupported rule %T", s.Rule)
	}
	return opt, nil
}

// RRule returns the RRULE value (without the "RRULE:" prefix) for s.
func RRule(s domain.Series) (string, error) {
	opt, err := RuleOption(s)
	if err != nil {
		return "", err
	}
	if _, err := rrule.NewRRule(opt); err != nil {
		return "", fmt.Errorf("rrule: %w", err)
	}
	return opt.RRuleString(), nil
}

// Expand returns up to n occurrences of s computed by the RRULE engine.
func Expand(s domain.Series, n int) ([]domain.Date, error) {
	opt, err := RuleOption(s)
	if err != nil {
		return nil, err
	}
	opt.Count = n
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("rrule: %w", err)
	}
	all := r.All()
	out := make([]domain.Date, 0, len(all))
	for _, t := range all {
		out = append(out, domain.DateOf(t.In(time.UTC)))
	}
	return out, nil
}
