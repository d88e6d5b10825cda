package domain

import "time"

// Series materializes chunks of a task according to a Rule.
//
// Start, Rule kind and TaskID are fixed once the series exists.
// LastScheduledDay is the resume cursor: the day of the last chunk created.
type Series struct {
	ID               int64 `json:"id"`
	TaskID           int64 `json:"task_id"`
	UserID           int64 `json:"-"`
	Duration         Hours `json:"duration"`
	Start            Date  `json:"start"`
	End              *Date `json:"end,omitempty"`
	Rule             Rule  `json:"-"`
	LastScheduledDay *Date `json:"last_scheduled_day,omitempty"`
	Completed        bool  `json:"completed"`
}

// ApplyRule returns the day of the occurrence after last, or the first
// occurrence when last is nil. ok is false when the series has no further
// occurrence (the next one would be past End).
//
// A last day before Start is ignored so moving the start forward never
// schedules retroactively.
func (s *Series) ApplyRule(last *Date) (day Date, ok bool) {
	if last != nil && last.Before(s.Start) {
		last = nil
	}
	next := s.Rule.next(s.Start, last)
	if s.End != nil && next.After(*s.End) {
		return Date{}, false
	}
	return next, true
}

// Occurrences returns up to n consecutive occurrences starting after last.
func (s *Series) Occurrences(last *Date, n int) []Date {
	out := make([]Date, 0, n)
	for len(out) < n {
		day, ok := s.ApplyRule(last)
		if !ok {
			break
		}
		out = append(out, day)
		last = &day
	}
	return out
}

// SeriesInput is the client-supplied definition of a series.
type SeriesInput struct {
	TaskID   int64
	Duration Hours
	Start    Date
	End      *Date
	Rule     RuleParams
}

// NewSeries validates in as a new series. Start may not lie before today.
func NewSeries(in SeriesInput, today Date) (Series, error) {
	verr := &ValidationError{}
	rule, err := in.Rule.Rule()
	if err != nil {
		if ve, ok := err.(*ValidationError); ok {
			for f, m := range ve.Fields {
				verr.Add(f, m)
			}
		}
	}
	if in.Duration <= 0 {
		verr.Add("duration", "must be greater than 0")
	}
	if in.Start.IsZero() {
		verr.Add("start", "this field is required")
	} else if in.Start.Before(today) {
		verr.Add("start", "the start date is not allowed to be in the past")
	}
	if in.End != nil && !in.Start.IsZero() && in.Start.After(*in.End) {
		verr.Add("start", "start date may not be after the end date")
		verr.Add("end", "end date may not be before the start date")
	}
	if rule != nil {
		rule.validate(in.Start, verr)
	}
	if err := verr.OrNil(); err != nil {
		return Series{}, err
	}
	return Series{
		TaskID:   in.TaskID,
		Duration: in.Duration,
		Start:    in.Start,
		End:      in.End,
		Rule:     rule,
	}, nil
}

// SeriesFields is an update of an existing series. Start, TaskID and
// Rule.Kind must match the stored values when given.
type SeriesFields struct {
	TaskID   *int64
	Duration *Hours
	Start    *Date
	End      **Date
	Rule     *RuleParams
}

// Apply validates f against s and returns the updated series. reactivate is
// true when the change may yield further occurrences of a completed series.
func (f SeriesFields) Apply(s Series) (out Series, reactivate bool, err error) {
	verr := &ValidationError{}
	if f.TaskID != nil && *f.TaskID != s.TaskID {
		verr.Add("task_id", "changing the task of an existing series is not allowed")
	}
	if f.Start != nil && !f.Start.Equal(s.Start) {
		verr.Add("start", "changing the start of an existing series is not allowed")
	}
	if f.Duration != nil {
		if *f.Duration <= 0 {
			verr.Add("duration", "must be greater than 0")
		}
		s.Duration = *f.Duration
	}
	if f.End != nil {
		s.End = *f.End
		reactivate = true
		if s.End != nil && s.Start.After(*s.End) {
			verr.Add("end", "end date may not be before the start date")
		}
	}
	if f.Rule != nil {
		if f.Rule.Kind != s.Rule.Kind() {
			verr.Add("rule", "changing the rule of an existing series is not allowed")
		} else if rule, err := f.Rule.Rule(); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				for k, m := range ve.Fields {
					verr.Add(k, m)
				}
			}
		} else {
			rule.validate(s.Start, verr)
			s.Rule = rule
			reactivate = true
		}
	}
	if err := verr.OrNil(); err != nil {
		return Series{}, false, err
	}
	return s, reactivate && s.Completed, nil
}

// ScheduleLimits bound a single Schedule run.
type ScheduleLimits struct {
	MaxCount   int
	MaxAdvance time.Duration
}

var DefaultScheduleLimits = ScheduleLimits{MaxCount: 50, MaxAdvance: 365 * 24 * time.Hour}

// Plan computes the days a Schedule run materializes, starting after the
// series cursor. completed reports that the rule is exhausted. Days more than
// MaxAdvance past today stop the run without completing the series.
func (s *Series) Plan(today Date, lim ScheduleLimits) (days []Date, completed bool) {
	if s.Completed || lim.MaxCount <= 0 {
		return nil, false
	}
	maxDays := int(lim.MaxAdvance / (24 * time.Hour))
	last := s.LastScheduledDay
	for len(days) < lim.MaxCount {
		day, ok := s.ApplyRule(last)
		if !ok {
			return days, true
		}
		if today.DaysUntil(day) > maxDays {
			break
		}
		days = append(days, day)
		last = &day
	}
	return days, false
}
