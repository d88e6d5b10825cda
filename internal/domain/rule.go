package domain

import (
	"fmt"
	"strings"
	"time"
)

// RuleKind names a recurrence rule.
type RuleKind string

const (
	RuleInterval       RuleKind = "interval"
	RuleMonthly        RuleKind = "monthly"
	RuleMonthlyWeekday RuleKind = "monthlyweekday"
)

// Rule is a recurrence rule. The concrete types are IntervalRule,
// MonthlyRule and MonthlyWeekdayRule; the set is closed.
type Rule interface {
	Kind() RuleKind
	// next returns the occurrence following last, or the first occurrence
	// on or after start when last is nil.
	next(start Date, last *Date) Date
	validate(start Date, verr *ValidationError)
}

// IntervalRule recurs every Days days.
type IntervalRule struct {
	Days int
}

func (IntervalRule) Kind() RuleKind { return RuleInterval }

func (r IntervalRule) next(start Date, last *Date) Date {
	if last == nil {
		return start
	}
	return last.AddDays(r.Days)
}

func (r IntervalRule) validate(_ Date, verr *ValidationError) {
	if r.Days < 1 {
		verr.Add("interval_days", "must be at least 1")
	}
}

// MonthlyRule recurs on Day of every Months-th month. Months shorter than
// Day use their last day.
type MonthlyRule struct {
	Day    int
	Months int
}

func (MonthlyRule) Kind() RuleKind { return RuleMonthly }

func (r MonthlyRule) next(start Date, last *Date) Date {
	if last == nil {
		return clampedDate(start.Year(), start.Month(), r.Day)
	}
	y, m := addMonths(last.Year(), last.Month(), r.Months)
	return clampedDate(y, m, r.Day)
}

func (r MonthlyRule) validate(start Date, verr *ValidationError) {
	if r.Day < 1 || r.Day > 31 {
		verr.Add("monthly_day", "must be between 1 and 31")
	} else if !start.IsZero() && r.Day != start.Day() {
		// A start on the last day of a month stands for every later day too
		// (e.g. Feb 28 with day 31).
		if !start.IsLastOfMonth() || r.Day < start.Day() {
			verr.Add("monthly_day", "monthly day must be the same as the day of the start date")
		}
	}
	if r.Months < 1 {
		verr.Add("monthly_months", "must be at least 1")
	}
}

// MonthlyWeekdayRule recurs on the Nth Weekday of every Months-th month.
// Months with fewer than Nth such weekdays use the last one.
//
// Weekday is a time.Weekday; the stored and wire form numbers days from
// monday (see WeekdayOf and WeekdayNumber).
type MonthlyWeekdayRule struct {
	Weekday time.Weekday
	Nth     int
	Months  int
}

func (MonthlyWeekdayRule) Kind() RuleKind { return RuleMonthlyWeekday }

func (r MonthlyWeekdayRule) next(start Date, last *Date) Date {
	if last == nil {
		d := r.in(start.Year(), start.Month())
		if d.Before(start) {
			y, m := addMonths(start.Year(), start.Month(), r.Months)
			d = r.in(y, m)
		}
		return d
	}
	y, m := addMonths(last.Year(), last.Month(), r.Months)
	return r.in(y, m)
}

// in returns the rule's day within the given month.
func (r MonthlyWeekdayRule) in(year int, month time.Month) Date {
	d := NewDate(year, month, 1)
	for d.Weekday() != r.Weekday {
		d = d.AddDays(1)
	}
	for i := 1; i < r.Nth; i++ {
		shifted := d.AddDays(7)
		if shifted.Month() != month {
			break
		}
		d = shifted
	}
	return d
}

func (r MonthlyWeekdayRule) validate(_ Date, verr *ValidationError) {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		verr.Add("monthlyweekday_weekday", "must be between 0 (monday) and 6 (sunday)")
	}
	if r.Nth < 1 || r.Nth > 6 {
		verr.Add("monthlyweekday_nth", "must be between 1 and 6")
	}
	if r.Months < 1 {
		verr.Add("monthly_months", "must be at least 1")
	}
}

// RuleParams is the flat, storage and wire shaped form of a Rule. Exactly
// the parameters of Kind must be set.
type RuleParams struct {
	Kind          RuleKind `db:"rule" json:"rule"`
	IntervalDays  *int     `db:"interval_days" json:"interval_days,omitempty"`
	MonthlyDay    *int     `db:"monthly_day" json:"monthly_day,omitempty"`
	MonthlyMonths *int     `db:"monthly_months" json:"monthly_months,omitempty"`
	Weekday       *int     `db:"monthlyweekday_weekday" json:"monthlyweekday_weekday,omitempty"`
	Nth           *int     `db:"monthlyweekday_nth" json:"monthlyweekday_nth,omitempty"`
}

// Rule converts p into its typed form. Missing parameters of the kind and
// parameters belonging to other kinds are both reported.
func (p RuleParams) Rule() (Rule, error) {
	fields := map[string]*int{
		"interval_days":          p.IntervalDays,
		"monthly_day":            p.MonthlyDay,
		"monthly_months":         p.MonthlyMonths,
		"monthlyweekday_weekday": p.Weekday,
		"monthlyweekday_nth":     p.Nth,
	}
	var required []string
	switch p.Kind {
	case RuleInterval:
		required = []string{"interval_days"}
	case RuleMonthly:
		required = []string{"monthly_day", "monthly_months"}
	case RuleMonthlyWeekday:
		required = []string{"monthly_months", "monthlyweekday_weekday", "monthlyweekday_nth"}
	default:
		return nil, Invalid("rule", fmt.Sprintf("unknown rule %q", p.Kind))
	}

	verr := &ValidationError{}
	isRequired := map[string]bool{}
	for _, f := range required {
		isRequired[f] = true
		if fields[f] == nil {
			verr.Add(f, "this field is required")
		}
	}
	for f, v := range fields {
		if !isRequired[f] && v != nil {
			verr.Add(f, "this field is not allowed")
		}
	}
	if p.Kind == RuleMonthlyWeekday && p.Weekday != nil && (*p.Weekday < 0 || *p.Weekday > 6) {
		verr.Add("monthlyweekday_weekday", "must be between 0 (monday) and 6 (sunday)")
	}
	if !verr.Empty() {
		return nil, verr
	}

	switch p.Kind {
	case RuleInterval:
		return IntervalRule{Days: *p.IntervalDays}, nil
	case RuleMonthly:
		return MonthlyRule{Day: *p.MonthlyDay, Months: *p.MonthlyMonths}, nil
	default:
		return MonthlyWeekdayRule{Weekday: WeekdayOf(*p.Weekday), Nth: *p.Nth, Months: *p.MonthlyMonths}, nil
	}
}

// ParamsOf flattens r.
func ParamsOf(r Rule) RuleParams {
	p := RuleParams{Kind: r.Kind()}
	switch r := r.(type) {
	case IntervalRule:
		p.IntervalDays = intPtr(r.Days)
	case MonthlyRule:
		p.MonthlyDay = intPtr(r.Day)
		p.MonthlyMonths = intPtr(r.Months)
	case MonthlyWeekdayRule:
		p.Weekday = intPtr(WeekdayNumber(r.Weekday))
		p.Nth = intPtr(r.Nth)
		p.MonthlyMonths = intPtr(r.Months)
	}
	return p
}

// WeekdayOf maps a stored weekday number (0 = monday .. 6 = sunday) to a
// time.Weekday.
func WeekdayOf(n int) time.Weekday { return time.Weekday((n + 1) % 7) }

// WeekdayNumber is the inverse of WeekdayOf.
func WeekdayNumber(wd time.Weekday) int { return (int(wd) + 6) % 7 }

// ParseWeekday accepts english weekday names ("mon", "Monday") or 0..6
// with 0 = monday.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return WeekdayOf(int(s[0] - '0')), nil
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

func intPtr(v int) *int { return &v }
