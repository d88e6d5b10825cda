// Package ics renders a user's plan as an iCalendar feed.
//
// Chunks become all-day events. Each active series additionally becomes a
// single recurring event carrying its RRULE so calendar clients can show
// occurrences past the materialized horizon.
package ics

import (
	"fmt"
	"io"
	"time"

	"taskplan/internal/domain"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//taskplan//plan export//EN"

type ExportInput struct {
	CalendarName string
	// Domain is the right-hand side of generated UIDs.
	Domain string
	Tasks  []domain.Task
	Chunks []domain.Chunk
	Series []domain.Series
	Stamp  time.Time
}

// Export writes in as a VCALENDAR to w. Chunks whose task is not among
// in.Tasks are still exported, titled by task id.
func Export(w io.Writer, in ExportInput) error {
	if in.Domain == "" {
		in.Domain = "taskplan.local"
	}
	if in.Stamp.IsZero() {
		in.Stamp = time.Now()
	}
	names := make(map[int64]string, len(in.Tasks))
	for _, t := range in.Tasks {
		names[t.ID] = t.Name
	}
	title := func(taskID int64) string {
		if n, ok := names[taskID]; ok {
			return n
		}
		return fmt.Sprintf("task #%d", taskID)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if in.CalendarName != "" {
		cal.SetXWRCalName(in.CalendarName)
	}

	for _, c := range in.Chunks {
		ev := cal.AddEvent(fmt.Sprintf("chunk-%d@%s", c.ID, in.Domain))
		ev.SetDtStampTime(in.Stamp)
		ev.SetSummary(title(c.TaskID))
		ev.SetAllDayStartAt(c.Day.Time())
		ev.SetAllDayEndAt(c.Day.AddDays(1).Time())
		desc := fmt.Sprintf("%sh", c.Duration)
		if c.Finished {
			desc += " (finished)"
		}
		if c.Notes != "" {
			desc += "\n" + c.Notes
		}
		ev.SetDescription(desc)
	}

	for _, s := range in.Series {
		if s.Completed {
			continue
		}
		rule, err := RRule(s)
		if err != nil {
			return fmt.Errorf("series %d: %w", s.ID, err)
		}
		ev := cal.AddEvent(fmt.Sprintf("series-%d@%s", s.ID, in.Domain))
		ev.SetDtStampTime(in.Stamp)
		ev.SetSummary(title(s.TaskID))
		ev.SetAllDayStartAt(s.Start.Time())
		ev.SetAllDayEndAt(s.Start.AddDays(1).Time())
		ev.SetDescription(fmt.Sprintf("%sh every occurrence", s.Duration))
		ev.AddRrule(rule)
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
