package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"taskplan/internal/domain"

	"github.com/spf13/cobra"
)

// output writes v as JSON with --json, otherwise calls human.
func (e *env) output(cmd *cobra.Command, v any, human func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if e.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(out)
	return nil
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	_ = tw.Flush()
}

func dateOrDash(d *domain.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func tasksTable(w io.Writer, tasks []domain.Task) {
	table(w, "ID\tNAME\tPRIO\tDURATION\tSCHEDULED\tFINISHED\tSTART\tDEADLINE", func(tw *tabwriter.Writer) {
		for _, t := range tasks {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Name, t.Priority, t.Duration, t.ScheduledDuration, t.FinishedDuration,
				dateOrDash(t.Start), dateOrDash(t.Deadline))
		}
	})
}

func chunksTable(w io.Writer, chunks []domain.Chunk) {
	table(w, "ID\tTASK\tDAY\tORDER\tDURATION\tFINISHED\tSERIES", func(tw *tabwriter.Writer) {
		for _, c := range chunks {
			series := "-"
			if c.SeriesID != nil {
				series = strconv.FormatInt(*c.SeriesID, 10)
			}
			fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\t%t\t%s\n",
				c.ID, c.TaskID, c.Day, c.DayOrder, c.Duration, c.Finished, series)
		}
	})
}

// seriesView adds the flattened rule to a series for display.
type seriesView struct {
	domain.Series
	Params domain.RuleParams `json:"rule"`
}

func viewSeries(s domain.Series) seriesView {
	return seriesView{Series: s, Params: domain.ParamsOf(s.Rule)}
}

func describeRule(p domain.RuleParams) string {
	v := func(p *int) string {
		if p == nil {
			return "?"
		}
		return strconv.Itoa(*p)
	}
	switch p.Kind {
	case domain.RuleInterval:
		return "every " + v(p.IntervalDays) + " days"
	case domain.RuleMonthly:
		return "day " + v(p.MonthlyDay) + " every " + v(p.MonthlyMonths) + " months"
	case domain.RuleMonthlyWeekday:
		wd := "?"
		if p.Weekday != nil {
			wd = strings.ToLower(domain.WeekdayOf(*p.Weekday).String())
		}
		return "nth " + v(p.Nth) + " " + wd + " every " + v(p.MonthlyMonths) + " months"
	}
	return string(p.Kind)
}

func seriesTable(w io.Writer, series []domain.Series) {
	table(w, "ID\tTASK\tDURATION\tSTART\tEND\tRULE\tLAST\tDONE", func(tw *tabwriter.Writer) {
		for _, s := range series {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
				s.ID, s.TaskID, s.Duration, s.Start, dateOrDash(s.End),
				describeRule(domain.ParamsOf(s.Rule)), dateOrDash(s.LastScheduledDay), s.Completed)
		}
	})
}
