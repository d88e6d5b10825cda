package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxTaskNameLen  = 40
	MinPriority     = 0
	MaxPriority     = 10
	DefaultPriority = 5
)

// Task is a unit of work with a target total duration.
//
// ScheduledDuration and FinishedDuration are aggregates over the task's
// chunks, filled in by the store when a task is loaded.
type Task struct {
	ID       int64   `db:"id" json:"id"`
	UserID   int64   `db:"user_id" json:"-"`
	Name     string  `db:"name" json:"name"`
	Duration Hours   `db:"duration" json:"duration"`
	Priority int     `db:"priority" json:"priority"`
	Start    *Date   `db:"start_day" json:"start,omitempty"`
	Deadline *Date   `db:"deadline" json:"deadline,omitempty"`
	Notes    string  `db:"notes" json:"notes,omitempty"`
	Labels   []int64 `db:"-" json:"labels"`

	ScheduledDuration Hours `db:"scheduled_duration" json:"scheduled_duration"`
	FinishedDuration  Hours `db:"finished_duration" json:"finished_duration"`
}

// UnscheduledDuration is the part of the duration not yet covered by chunks.
func (t *Task) UnscheduledDuration() Hours { return t.Duration - t.ScheduledDuration }

func (t *Task) CompletelyScheduled() bool { return t.ScheduledDuration == t.Duration }

func (t *Task) Finished() bool { return t.FinishedDuration == t.Duration }

// TaskFields holds the client-editable task attributes. Nil pointers leave
// the stored value untouched on update.
type TaskFields struct {
	Name     *string
	Duration *Hours
	Priority *int
	Start    **Date
	Deadline **Date
	Notes    *string
	Labels   *[]int64
}

// Apply validates f against t and returns the updated copy. scheduled is the
// currently committed chunk total; the duration may never drop below it.
func (f TaskFields) Apply(t Task, scheduled Hours) (Task, error) {
	verr := &ValidationError{}
	if f.Name != nil {
		name := strings.TrimSpace(*f.Name)
		switch {
		case name == "":
			verr.Add("name", "may not be empty")
		case utf8.RuneCountInString(name) > MaxTaskNameLen:
			verr.Add("name", "may not be longer than 40 characters")
		}
		t.Name = name
	}
	if f.Duration != nil {
		d := *f.Duration
		switch {
		case d <= 0:
			verr.Add("duration", "must be greater than 0")
		case d < scheduled:
			verr.Add("duration", "the new duration ("+d.String()+") is less than the scheduled duration ("+scheduled.String()+")")
		}
		t.Duration = d
	}
	if f.Priority != nil {
		if *f.Priority < MinPriority || *f.Priority > MaxPriority {
			verr.Add("priority", "must be between 0 and 10")
		}
		t.Priority = *f.Priority
	}
	if f.Start != nil {
		t.Start = *f.Start
	}
	if f.Deadline != nil {
		t.Deadline = *f.Deadline
	}
	if t.Start != nil && t.Deadline != nil && t.Start.After(*t.Deadline) {
		if f.Start != nil {
			verr.Add("start", "start date may not be after the deadline")
		}
		if f.Deadline != nil {
			verr.Add("deadline", "deadline may not be before the start date")
		}
	}
	if f.Notes != nil {
		t.Notes = *f.Notes
	}
	if f.Labels != nil {
		t.Labels = append([]int64(nil), (*f.Labels)...)
	}
	if err := verr.OrNil(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// NewTask validates f as a fresh task owned by userID. Name and duration are
// required; priority defaults to DefaultPriority.
func NewTask(userID int64, f TaskFields) (Task, error) {
	t := Task{UserID: userID, Priority: DefaultPriority}
	verr := &ValidationError{}
	if f.Name == nil {
		verr.Add("name", "this field is required")
	}
	if f.Duration == nil {
		verr.Add("duration", "this field is required")
	}
	if !verr.Empty() {
		return Task{}, verr
	}
	return f.Apply(t, 0)
}
