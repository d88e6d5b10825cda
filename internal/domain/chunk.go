package domain

import (
	"fmt"
	"strings"
)

// Chunk is a dated, ordered slice of a task's work.
//
// Chunks are bucketed by (UserID, Day); DayOrder positions the chunk inside
// its bucket.
type Chunk struct {
	ID       int64  `db:"id" json:"id"`
	TaskID   int64  `db:"task_id" json:"task_id"`
	UserID   int64  `db:"user_id" json:"-"`
	SeriesID *int64 `db:"series_id" json:"series,omitempty"`
	Day      Date   `db:"day" json:"day"`
	DayOrder int    `db:"day_order" json:"day_order"`
	Duration Hours  `db:"duration" json:"duration"`
	Finished bool   `db:"finished" json:"finished"`
	Notes    string `db:"notes" json:"notes,omitempty"`
}

// ScheduledDuration sums the durations of chunks.
func ScheduledDuration(chunks []Chunk) Hours {
	var sum Hours
	for _, c := range chunks {
		sum += c.Duration
	}
	return sum
}

// FinishedDuration sums the durations of finished chunks.
func FinishedDuration(chunks []Chunk) Hours {
	var sum Hours
	for _, c := range chunks {
		if c.Finished {
			sum += c.Duration
		}
	}
	return sum
}

// NextDayOrder returns the order for appending to a bucket whose current
// highest order is maxOrder (ok=false for an empty bucket).
func NextDayOrder(maxOrder int, ok bool) int {
	if !ok {
		return 1
	}
	return maxOrder + 1
}

// DayToken is a symbolic day resolved at scheduling time.
type DayToken string

const (
	DayToday            DayToken = "today"
	DayTomorrow         DayToken = "tomorrow"
	DayNextFreeCapacity DayToken = "next_free_capacity"
)

// DaySpec is either a concrete date or a DayToken.
type DaySpec struct {
	Date  Date
	Token DayToken
}

func On(d Date) DaySpec { return DaySpec{Date: d} }

func ParseDaySpec(raw string) (DaySpec, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch DayToken(s) {
	case DayToday, DayTomorrow, DayNextFreeCapacity:
		return DaySpec{Token: DayToken(s)}, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return DaySpec{}, fmt.Errorf("invalid day %q (want YYYY-MM-DD, today, tomorrow or next_free_capacity)", raw)
	}
	return On(d), nil
}

func (s DaySpec) String() string {
	if s.Token != "" {
		return string(s.Token)
	}
	return s.Date.String()
}

// ChunkFields holds the client-editable chunk attributes for an update.
type ChunkFields struct {
	Duration *Hours
	Day      *Date
	DayOrder *int
	Finished *bool
	Notes    *string
}

// ChunkFilter narrows chunk listings.
//
// With MinDate set and StrictDate unset, unfinished chunks before MinDate are
// still returned so missed work stays visible.
type ChunkFilter struct {
	MinDate    *Date
	MaxDate    *Date
	StrictDate bool
	TaskIDs    []int64
}

func (f ChunkFilter) Validate() error {
	if f.MinDate != nil && f.MaxDate != nil && f.MaxDate.Before(*f.MinDate) {
		return Invalid("max_date", "must not be before min_date")
	}
	return nil
}
