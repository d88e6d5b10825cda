package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"taskplan/internal/app"
	"taskplan/internal/domain"
	"taskplan/internal/planner"

	"github.com/spf13/cobra"
)

func newSeriesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Manage recurring chunk series",
	}
	cmd.AddCommand(
		newSeriesCreateCommand(e),
		newSeriesListCommand(e),
		newSeriesShowCommand(e),
		newSeriesUpdateCommand(e),
		newSeriesDeleteCommand(e),
		newSeriesScheduleCommand(e),
	)
	return cmd
}

// ruleFlags collects the flat rule parameters. Only changed flags are set so
// mismatched parameters reach validation instead of being dropped.
type ruleFlags struct {
	kind    string
	every   int
	day     int
	months  int
	weekday string
	nth     int
}

func (f *ruleFlags) bind(cmd *cobra.Command, withKind bool) {
	if withKind {
		cmd.Flags().StringVar(&f.kind, "rule", string(domain.RuleInterval), "interval, monthly or monthlyweekday")
	}
	cmd.Flags().IntVar(&f.every, "every", 0, "interval: days between occurrences")
	cmd.Flags().IntVar(&f.day, "month-day", 0, "monthly: day of the month (1..31)")
	cmd.Flags().IntVar(&f.months, "months", 0, "monthly, monthlyweekday: months between occurrences")
	cmd.Flags().StringVar(&f.weekday, "weekday", "", "monthlyweekday: weekday name or 0..6 (0 = monday)")
	cmd.Flags().IntVar(&f.nth, "nth", 0, "monthlyweekday: occurrence of the weekday in the month (1..6)")
}

func (f *ruleFlags) changed(cmd *cobra.Command) bool {
	for _, n := range []string{"every", "month-day", "months", "weekday", "nth"} {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

// overlay writes the changed flags onto p.
func (f *ruleFlags) overlay(cmd *cobra.Command, p domain.RuleParams) (domain.RuleParams, error) {
	changed := cmd.Flags().Changed
	if changed("every") {
		p.IntervalDays = &f.every
	}
	if changed("month-day") {
		p.MonthlyDay = &f.day
	}
	if changed("months") {
		p.MonthlyMonths = &f.months
	}
	if changed("weekday") {
		wd, err := domain.ParseWeekday(f.weekday)
		if err != nil {
			return p, domain.Invalid("monthlyweekday_weekday", err.Error())
		}
		n := domain.WeekdayNumber(wd)
		p.Weekday = &n
	}
	if changed("nth") {
		p.Nth = &f.nth
	}
	return p, nil
}

func printSchedule(w io.Writer, verb string, res planner.ScheduleResult) {
	fmt.Fprintf(w, "%s series #%d (%s)\n", verb, res.Series.ID, describeRule(domain.ParamsOf(res.Series.Rule)))
	if len(res.Chunks) > 0 {
		chunksTable(w, res.Chunks)
	}
	if res.Completed {
		fmt.Fprintln(w, "Series has no further occurrences")
	}
}

// scheduleView is ScheduleResult with the rule flattened for JSON.
type scheduleView struct {
	Series    seriesView     `json:"series"`
	Chunks    []domain.Chunk `json:"chunks"`
	Completed bool           `json:"completed"`
}

func viewSchedule(res planner.ScheduleResult) scheduleView {
	return scheduleView{Series: viewSeries(res.Series), Chunks: res.Chunks, Completed: res.Completed}
}

func newSeriesCreateCommand(e *env) *cobra.Command {
	var (
		rf       ruleFlags
		duration string
		start    string
		end      string
	)
	cmd := &cobra.Command{
		Use:   "create <task-id>",
		Short: "Create a series and schedule its first chunks",
		Example: `  taskplan series create 7 --duration 1 --start 2026-11-02 --rule interval --every 7
  taskplan series create 7 --duration 2 --start 2026-11-30 --rule monthly --month-day 31 --months 1
  taskplan series create 7 --duration 1 --start 2026-11-01 --rule monthlyweekday --weekday mon --nth 1 --months 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task_id", args[0])
			if err != nil {
				return err
			}
			in := domain.SeriesInput{TaskID: taskID}
			if in.Duration, err = parseHours("duration", duration); err != nil {
				return err
			}
			if in.End, err = parseOptionalDate("end", end); err != nil {
				return err
			}
			if in.Rule, err = rf.overlay(cmd, domain.RuleParams{Kind: domain.RuleKind(rf.kind)}); err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				if start == "" {
					in.Start = a.Planner().Today()
				} else if in.Start, err = parseDate("start", start); err != nil {
					return err
				}
				res, err := a.Planner().CreateSeries(ctx, uid, in)
				if err != nil {
					return err
				}
				return e.output(cmd, viewSchedule(res), func(w io.Writer) { printSchedule(w, "Created", res) })
			})
		},
	}
	rf.bind(cmd, true)
	cmd.Flags().StringVar(&duration, "duration", "", "duration of every chunk in hours")
	cmd.Flags().StringVar(&start, "start", "", "first day (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&end, "end", "", "last day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func newSeriesListCommand(e *env) *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List series",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				series, err := a.Planner().ListSeries(ctx, uid, active)
				if err != nil {
					return err
				}
				views := make([]seriesView, 0, len(series))
				for _, s := range series {
					views = append(views, viewSeries(s))
				}
				return e.output(cmd, views, func(w io.Writer) { seriesTable(w, series) })
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "hide completed series")
	return cmd
}

func newSeriesShowCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				s, err := a.Planner().GetSeries(ctx, uid, id)
				if err != nil {
					return err
				}
				return e.output(cmd, viewSeries(s), func(w io.Writer) { seriesTable(w, []domain.Series{s}) })
			})
		},
	}
}

func newSeriesUpdateCommand(e *env) *cobra.Command {
	var (
		rf       ruleFlags
		duration string
		end      string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change duration, end or rule parameters of a series",
		Long: `Change duration, end or rule parameters of a series. The task, the start
and the rule kind of a series are fixed. Changes only affect chunks scheduled
afterwards; a completed series whose end or rule changed is resumed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			var f domain.SeriesFields
			if cmd.Flags().Changed("duration") {
				h, err := parseHours("duration", duration)
				if err != nil {
					return err
				}
				f.Duration = &h
			}
			if cmd.Flags().Changed("end") {
				d, err := parseOptionalDate("end", end)
				if err != nil {
					return err
				}
				f.End = &d
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				if rf.changed(cmd) {
					cur, err := a.Planner().GetSeries(ctx, uid, id)
					if err != nil {
						return err
					}
					p, err := rf.overlay(cmd, domain.ParamsOf(cur.Rule))
					if err != nil {
						return err
					}
					f.Rule = &p
				}
				s, err := a.Planner().UpdateSeries(ctx, uid, id, f)
				if err != nil {
					return err
				}
				return e.output(cmd, viewSeries(s), func(w io.Writer) {
					fmt.Fprintf(w, "Updated series #%d\n", s.ID)
				})
			})
		},
	}
	rf.bind(cmd, false)
	cmd.Flags().StringVar(&duration, "duration", "", "duration of future chunks in hours")
	cmd.Flags().StringVar(&end, "end", "", "last day (YYYY-MM-DD, none to clear)")
	return cmd
}

func newSeriesDeleteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a series and its unfinished future chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				if err := a.Planner().DeleteSeries(ctx, uid, id); err != nil {
					return err
				}
				return e.output(cmd, map[string]int64{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted series #%d\n", id)
				})
			})
		},
	}
}

func newSeriesScheduleCommand(e *env) *cobra.Command {
	var (
		maxCount   int
		maxAdvance time.Duration
	)
	cmd := &cobra.Command{
		Use:   "schedule <id>",
		Short: "Materialize the next chunks of a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				var lim *domain.ScheduleLimits
				if cmd.Flags().Changed("max-count") || cmd.Flags().Changed("max-advance") {
					l := a.Planner().Settings().Limits
					if cmd.Flags().Changed("max-count") {
						l.MaxCount = maxCount
					}
					if cmd.Flags().Changed("max-advance") {
						l.MaxAdvance = maxAdvance
					}
					lim = &l
				}
				res, err := a.Planner().ScheduleSeries(ctx, uid, id, lim)
				if err != nil {
					return err
				}
				return e.output(cmd, viewSchedule(res), func(w io.Writer) { printSchedule(w, "Scheduled", res) })
			})
		},
	}
	cmd.Flags().IntVar(&maxCount, "max-count", 0, "most chunks to create (default from config)")
	cmd.Flags().DurationVar(&maxAdvance, "max-advance", 0, "how far past today to schedule, e.g. 720h")
	return cmd
}
