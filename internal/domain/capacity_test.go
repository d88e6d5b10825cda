package domain

import (
	"errors"
	"testing"
)

func TestCapacityOf(t *testing.T) {
	t.Parallel()
	c := Capacity{Weekday: WholeHours(8), Weekend: WholeHours(3)}
	if got := c.Of(MustDate("2010-03-01")); got != WholeHours(8) { // monday
		t.Fatalf("monday capacity = %s", got)
	}
	if got := c.Of(MustDate("2010-02-27")); got != WholeHours(3) { // saturday
		t.Fatalf("saturday capacity = %s", got)
	}
}

func TestFirstDayWithCapacity(t *testing.T) {
	t.Parallel()
	c := Capacity{Weekday: WholeHours(10), Weekend: WholeHours(5)}
	sat := MustDate("2010-02-27")
	scheduled := map[Date]Hours{
		sat:            WholeHours(5),
		sat.AddDays(1): WholeHours(5),
		sat.AddDays(2): WholeHours(7),
	}

	got, err := FirstDayWithCapacity(c, scheduled, sat, 60, WholeHours(9))
	if err != nil {
		t.Fatalf("FirstDayWithCapacity: %v", err)
	}
	if want := MustDate("2010-03-02"); !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	// exact fit counts
	got, err = FirstDayWithCapacity(c, scheduled, sat, 60, WholeHours(3))
	if err != nil || !got.Equal(sat.AddDays(2)) {
		t.Fatalf("exact fit: got %s, %v", got, err)
	}
}

func TestFirstDayWithCapacityExhausted(t *testing.T) {
	t.Parallel()
	c := Capacity{Weekday: WholeHours(2), Weekend: WholeHours(1)}

	_, err := FirstDayWithCapacity(c, nil, MustDate("2010-03-01"), 60, WholeHours(3))
	var cerr *CapacityExhaustedError
	if !errors.As(err, &cerr) || cerr.Days != 0 {
		t.Fatalf("oversized duration: err = %v", err)
	}

	full := map[Date]Hours{}
	from := MustDate("2010-03-01")
	for i := 0; i < 5; i++ {
		full[from.AddDays(i)] = WholeHours(2)
	}
	_, err = FirstDayWithCapacity(c, full, from, 5, WholeHours(1))
	if !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("full horizon: err = %v", err)
	}
}

func TestParseHours(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Hours
		ok   bool
	}{
		{raw: "3", want: 300, ok: true},
		{raw: "1.5", want: 150, ok: true},
		{raw: "0.25", want: 25, ok: true},
		{raw: ".5", want: 50, ok: true},
		{raw: "-2", want: -200, ok: true},
		{raw: "1.255", ok: false},
		{raw: "abc", ok: false},
		{raw: "", ok: false},
		{raw: "999999.99", want: MaxHours, ok: true},
		{raw: "-999999.99", want: -MaxHours, ok: true},
		{raw: "1000000", ok: false},
		{raw: "999999999999999999", ok: false},
		{raw: "184467440737095516.16", ok: false},
		{raw: "99999999999999999999", ok: false},
	}
	for _, tt := range tests {
		got, err := ParseHours(tt.raw)
		if tt.ok && (err != nil || got != tt.want) {
			t.Fatalf("ParseHours(%q) = %v, %v; want %v", tt.raw, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Fatalf("ParseHours(%q) expected error", tt.raw)
		}
	}
	if s := MustHours("1.5").String(); s != "1.50" {
		t.Fatalf("String() = %s", s)
	}
}

func TestSplitReconstructsDuration(t *testing.T) {
	t.Parallel()
	orig := MustHours("3.33")
	at := MustHours("1.11")
	if at+(orig-at) != orig {
		t.Fatal("split parts do not add up")
	}
}

func TestTaskFieldsDurationBelowScheduled(t *testing.T) {
	t.Parallel()
	task := Task{Name: "write", Duration: WholeHours(5)}
	d := WholeHours(2)
	_, err := TaskFields{Duration: &d}.Apply(task, WholeHours(3))
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["duration"] == "" {
		t.Fatalf("err = %v, want duration validation error", err)
	}

	d = WholeHours(3)
	if _, err := (TaskFields{Duration: &d}).Apply(task, WholeHours(3)); err != nil {
		t.Fatalf("duration equal to scheduled rejected: %v", err)
	}
}

func TestParseDaySpec(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"today", "tomorrow", "next_free_capacity"} {
		s, err := ParseDaySpec(raw)
		if err != nil || string(s.Token) != raw {
			t.Fatalf("ParseDaySpec(%q) = %+v, %v", raw, s, err)
		}
	}
	s, err := ParseDaySpec("2024-02-29")
	if err != nil || s.Date.String() != "2024-02-29" {
		t.Fatalf("ParseDaySpec(date) = %+v, %v", s, err)
	}
	if _, err := ParseDaySpec("yesterday"); err == nil {
		t.Fatal("expected error for unknown token")
	}
}
