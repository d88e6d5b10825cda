package domain

import (
	"errors"
	"testing"
	"time"
)

func datePtr(s string) *Date {
	d := MustDate(s)
	return &d
}

func TestApplyRuleInterval(t *testing.T) {
	t.Parallel()
	s := Series{
		Start: MustDate("2010-02-24"),
		End:   datePtr("2010-12-24"),
		Rule:  IntervalRule{Days: 10},
	}

	if got, ok := s.ApplyRule(nil); !ok || !got.Equal(s.Start) {
		t.Fatalf("ApplyRule(nil) = %v, %v; want %v", got, ok, s.Start)
	}
	if got, ok := s.ApplyRule(datePtr("2010-12-14")); !ok || !got.Equal(*s.End) {
		t.Fatalf("ApplyRule(end-10) = %v, %v; want %v", got, ok, *s.End)
	}
	if got, ok := s.ApplyRule(s.End); ok {
		t.Fatalf("ApplyRule(end) = %v; want exhausted", got)
	}
}

func TestApplyRuleIgnoresCursorBeforeStart(t *testing.T) {
	t.Parallel()
	s := Series{Start: MustDate("2010-02-24"), Rule: IntervalRule{Days: 3}}
	got, ok := s.ApplyRule(datePtr("2010-01-01"))
	if !ok || !got.Equal(s.Start) {
		t.Fatalf("ApplyRule(before start) = %v, %v; want %v", got, ok, s.Start)
	}
}

func TestApplyRuleMonthly(t *testing.T) {
	t.Parallel()
	s := Series{Start: MustDate("2010-02-28"), Rule: MonthlyRule{Day: 31, Months: 1}}

	tests := []struct {
		name string
		last *Date
		want string
	}{
		{name: "first occurrence clamped", last: nil, want: "2010-02-28"},
		{name: "next clamped", last: datePtr("2010-03-16"), want: "2010-04-30"},
		{name: "leap year", last: datePtr("2012-01-05"), want: "2012-02-29"},
		{name: "full month", last: datePtr("2010-02-28"), want: "2010-03-31"},
		{name: "year wrap", last: datePtr("2010-12-31"), want: "2011-01-31"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.ApplyRule(tt.last)
			if !ok {
				t.Fatalf("ApplyRule exhausted")
			}
			if got.String() != tt.want {
				t.Fatalf("ApplyRule = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestApplyRuleMonthlyEveryThirdMonth(t *testing.T) {
	t.Parallel()
	s := Series{Start: MustDate("2024-01-15"), Rule: MonthlyRule{Day: 15, Months: 3}}
	got := s.Occurrences(nil, 5)
	want := []string{"2024-01-15", "2024-04-15", "2024-07-15", "2024-10-15", "2025-01-15"}
	if len(got) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("occurrence %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestApplyRuleMonthlyWeekday(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		start string
		rule  MonthlyWeekdayRule
		want  []string
	}{
		{
			name:  "first monday",
			start: "2024-05-01",
			rule:  MonthlyWeekdayRule{Weekday: time.Monday, Nth: 1, Months: 1},
			want:  []string{"2024-05-06", "2024-06-03", "2024-07-01"},
		},
		{
			name:  "fifth monday falls back to last",
			start: "2024-05-01",
			rule:  MonthlyWeekdayRule{Weekday: time.Monday, Nth: 5, Months: 1},
			want:  []string{"2024-05-27", "2024-06-24", "2024-07-29"},
		},
		{
			name:  "first occurrence before start moves to next period",
			start: "2024-05-10",
			rule:  MonthlyWeekdayRule{Weekday: time.Monday, Nth: 1, Months: 1},
			want:  []string{"2024-06-03", "2024-07-01"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := Series{Start: MustDate(tt.start), Rule: tt.rule}
			got := s.Occurrences(nil, len(tt.want))
			for i := range tt.want {
				if got[i].String() != tt.want[i] {
					t.Fatalf("occurrence %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPlanStopsAtHorizonWithoutCompleting(t *testing.T) {
	t.Parallel()
	s := Series{Start: MustDate("2024-01-01"), Rule: IntervalRule{Days: 7}}
	days, completed := s.Plan(MustDate("2024-01-01"), ScheduleLimits{MaxCount: 100, MaxAdvance: 30 * 24 * time.Hour})
	if completed {
		t.Fatal("infinite series must not complete")
	}
	if len(days) != 5 {
		t.Fatalf("got %d days, want 5 (Jan 1, 8, 15, 22, 29)", len(days))
	}
}

func TestPlanCompletesAtEnd(t *testing.T) {
	t.Parallel()
	s := Series{Start: MustDate("2024-01-01"), End: datePtr("2024-01-10"), Rule: IntervalRule{Days: 4}}
	days, completed := s.Plan(MustDate("2024-01-01"), DefaultScheduleLimits)
	if !completed {
		t.Fatal("expected series to complete")
	}
	if len(days) != 3 {
		t.Fatalf("got %d days, want 3", len(days))
	}
}

func TestPlanNoop(t *testing.T) {
	t.Parallel()
	s := Series{Start: MustDate("2024-01-01"), Rule: IntervalRule{Days: 1}}
	if days, completed := s.Plan(MustDate("2024-01-01"), ScheduleLimits{MaxCount: 0, MaxAdvance: time.Hour}); len(days) != 0 || completed {
		t.Fatalf("max_count=0 planned %d days (completed=%v)", len(days), completed)
	}
	s.Completed = true
	if days, _ := s.Plan(MustDate("2024-01-01"), DefaultScheduleLimits); len(days) != 0 {
		t.Fatalf("completed series planned %d days", len(days))
	}
}

func TestRuleParamsMismatch(t *testing.T) {
	t.Parallel()
	one := 1
	tests := []struct {
		name   string
		params RuleParams
		fields []string
	}{
		{name: "interval missing days", params: RuleParams{Kind: RuleInterval}, fields: []string{"interval_days"}},
		{name: "interval extraneous", params: RuleParams{Kind: RuleInterval, IntervalDays: &one, MonthlyDay: &one}, fields: []string{"monthly_day"}},
		{name: "monthly missing months", params: RuleParams{Kind: RuleMonthly, MonthlyDay: &one}, fields: []string{"monthly_months"}},
		{name: "weekday missing all", params: RuleParams{Kind: RuleMonthlyWeekday}, fields: []string{"monthly_months", "monthlyweekday_weekday", "monthlyweekday_nth"}},
		{name: "unknown kind", params: RuleParams{Kind: "weekly"}, fields: []string{"rule"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.params.Rule()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Rule() error = %v, want ValidationError", err)
			}
			for _, f := range tt.fields {
				if _, ok := verr.Fields[f]; !ok {
					t.Fatalf("missing error for %s in %v", f, verr.Fields)
				}
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Fatalf("got fields %v, want %v", verr.Fields, tt.fields)
			}
		})
	}
}

func TestNewSeriesValidation(t *testing.T) {
	t.Parallel()
	today := MustDate("2024-03-10")
	day, months := 15, 1
	monthly := RuleParams{Kind: RuleMonthly, MonthlyDay: &day, MonthlyMonths: &months}

	tests := []struct {
		name  string
		in    SeriesInput
		field string
	}{
		{name: "start in past", in: SeriesInput{Duration: WholeHours(1), Start: MustDate("2024-03-09"), Rule: monthly}, field: "start"},
		{name: "start after end", in: SeriesInput{Duration: WholeHours(1), Start: MustDate("2024-03-15"), End: datePtr("2024-03-14"), Rule: monthly}, field: "end"},
		{name: "monthly day mismatch", in: SeriesInput{Duration: WholeHours(1), Start: MustDate("2024-03-16"), Rule: monthly}, field: "monthly_day"},
		{name: "zero duration", in: SeriesInput{Start: MustDate("2024-03-15"), Rule: monthly}, field: "duration"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSeries(tt.in, today)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("NewSeries error = %v, want ValidationError", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Fatalf("expected error on %s, got %v", tt.field, verr.Fields)
			}
		})
	}

	if _, err := NewSeries(SeriesInput{Duration: WholeHours(1), Start: MustDate("2024-03-15"), Rule: monthly}, today); err != nil {
		t.Fatalf("valid series rejected: %v", err)
	}
}

func TestSeriesFieldsImmutable(t *testing.T) {
	t.Parallel()
	s := Series{TaskID: 1, Start: MustDate("2024-03-15"), Rule: IntervalRule{Days: 2}}
	otherTask := int64(2)
	otherStart := MustDate("2024-03-16")
	_, _, err := SeriesFields{TaskID: &otherTask, Start: &otherStart, Rule: &RuleParams{Kind: RuleMonthly}}.Apply(s)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Apply error = %v, want ValidationError", err)
	}
	for _, f := range []string{"task_id", "start", "rule"} {
		if _, ok := verr.Fields[f]; !ok {
			t.Fatalf("expected error on %s, got %v", f, verr.Fields)
		}
	}
}

func TestSeriesFieldsReactivate(t *testing.T) {
	t.Parallel()
	s := Series{Start: MustDate("2024-03-15"), End: datePtr("2024-04-01"), Rule: IntervalRule{Days: 2}, Completed: true}
	end := datePtr("2024-05-01")
	out, reactivate, err := SeriesFields{End: &end}.Apply(s)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reactivate || !out.End.Equal(*end) {
		t.Fatalf("reactivate=%v end=%v", reactivate, out.End)
	}
}

func TestWeekdayNumberingStartsMonday(t *testing.T) {
	t.Parallel()
	one := 1
	for n, want := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		n := n
		r, err := RuleParams{Kind: RuleMonthlyWeekday, Weekday: &n, Nth: &one, MonthlyMonths: &one}.Rule()
		if err != nil {
			t.Fatalf("Rule(weekday=%d): %v", n, err)
		}
		if got := r.(MonthlyWeekdayRule).Weekday; got != want {
			t.Fatalf("weekday %d = %s, want %s", n, got, want)
		}
		if back := *ParamsOf(r).Weekday; back != n {
			t.Fatalf("ParamsOf(%s).Weekday = %d, want %d", want, back, n)
		}
	}

	for _, n := range []int{-1, 7} {
		n := n
		_, err := RuleParams{Kind: RuleMonthlyWeekday, Weekday: &n, Nth: &one, MonthlyMonths: &one}.Rule()
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Fields["monthlyweekday_weekday"] == "" {
			t.Fatalf("weekday %d: err = %v, want monthlyweekday_weekday error", n, err)
		}
	}

	tests := map[string]time.Weekday{"0": time.Monday, "6": time.Sunday, "mon": time.Monday, "Sunday": time.Sunday}
	for raw, want := range tests {
		got, err := ParseWeekday(raw)
		if err != nil || got != want {
			t.Fatalf("ParseWeekday(%q) = %s, %v; want %s", raw, got, err, want)
		}
	}

	// First occurrence of "weekday 0, nth 1" in May 2024 is Monday the 6th.
	zero := 0
	r, err := RuleParams{Kind: RuleMonthlyWeekday, Weekday: &zero, Nth: &one, MonthlyMonths: &one}.Rule()
	if err != nil {
		t.Fatalf("Rule: %v", err)
	}
	s := Series{Start: MustDate("2024-05-01"), Rule: r}
	if got, _ := s.ApplyRule(nil); got.String() != "2024-05-06" {
		t.Fatalf("ApplyRule = %s, want 2024-05-06", got)
	}
}
