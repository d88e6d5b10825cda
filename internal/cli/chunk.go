package cli

import (
	"context"
	"fmt"
	"io"

	"taskplan/internal/app"
	"taskplan/internal/domain"
	"taskplan/internal/planner"

	"github.com/spf13/cobra"
)

func newChunkCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Schedule task chunks on days",
	}
	cmd.AddCommand(
		newChunkCreateCommand(e),
		newChunkListCommand(e),
		newChunkMissedCommand(e),
		newChunkUpdateCommand(e),
		newChunkDeleteCommand(e),
		newChunkSplitCommand(e),
	)
	return cmd
}

func printChange(w io.Writer, verb string, ch planner.ChunkChange) {
	fmt.Fprintf(w, "%s chunk #%d: task #%d on %s (order %d, %s h)\n",
		verb, ch.Chunk.ID, ch.Chunk.TaskID, ch.Chunk.Day, ch.Chunk.DayOrder, ch.Chunk.Duration)
	if len(ch.Moved) > 0 {
		fmt.Fprintf(w, "Reordered %d chunk(s) on %s\n", len(ch.Moved), ch.Chunk.Day)
	}
}

func newChunkCreateCommand(e *env) *cobra.Command {
	var (
		day      string
		duration string
		order    int
		finished bool
		notes    string
	)
	cmd := &cobra.Command{
		Use:   "create <task-id>",
		Short: "Schedule a chunk of a task",
		Long: `Schedule a chunk of a task on a day.

--day accepts YYYY-MM-DD, today, tomorrow or next_free_capacity. The latter
picks the first day within the planning horizon that still has room for the
chunk. A chunk longer than the unscheduled part of its task grows the task.`,
		Example: `  taskplan chunk create 4 --duration 2 --day next_free_capacity
  taskplan chunk create 4 --duration 1 --day 2026-11-02 --order 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task_id", args[0])
			if err != nil {
				return err
			}
			spec, err := domain.ParseDaySpec(day)
			if err != nil {
				return err
			}
			h, err := parseHours("duration", duration)
			if err != nil {
				return err
			}
			in := planner.ChunkInput{TaskID: taskID, Day: spec, Duration: h, Finished: finished, Notes: notes}
			if cmd.Flags().Changed("order") {
				in.DayOrder = &order
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				ch, err := a.Planner().CreateChunk(ctx, uid, in)
				if err != nil {
					return err
				}
				return e.output(cmd, ch, func(w io.Writer) { printChange(w, "Created", ch) })
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", string(domain.DayToday), "day to schedule on")
	cmd.Flags().StringVar(&duration, "duration", "", "duration in hours")
	cmd.Flags().IntVar(&order, "order", 0, "position within the day (appends when unset)")
	cmd.Flags().BoolVar(&finished, "finished", false, "mark as already done")
	cmd.Flags().StringVar(&notes, "notes", "", "free text")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func newChunkListCommand(e *env) *cobra.Command {
	var (
		from, to string
		strict   bool
		tasks    []string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List chunks",
		Long: `List chunks ordered by day and order within the day.

With --from and without --strict, unfinished chunks before --from are listed
too so missed work stays visible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var f domain.ChunkFilter
			var err error
			if f.MinDate, err = parseOptionalDate("min_date", from); err != nil {
				return err
			}
			if f.MaxDate, err = parseOptionalDate("max_date", to); err != nil {
				return err
			}
			f.StrictDate = strict
			if f.TaskIDs, err = parseIDs("task_ids", tasks); err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				chunks, err := a.Planner().ListChunks(ctx, uid, f)
				if err != nil {
					return err
				}
				return e.output(cmd, chunks, func(w io.Writer) { chunksTable(w, chunks) })
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&strict, "strict", false, "drop unfinished chunks before --from")
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "only chunks of this task id (repeatable)")
	return cmd
}

func newChunkMissedCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "missed",
		Short: "List unfinished chunks scheduled before today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				chunks, err := a.Planner().MissedChunks(ctx, uid)
				if err != nil {
					return err
				}
				return e.output(cmd, chunks, func(w io.Writer) { chunksTable(w, chunks) })
			})
		},
	}
}

func newChunkUpdateCommand(e *env) *cobra.Command {
	var (
		duration string
		day      string
		order    int
		finished bool
		notes    string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Move, resize or finish a chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			var f domain.ChunkFields
			changed := cmd.Flags().Changed
			if changed("duration") {
				h, err := parseHours("duration", duration)
				if err != nil {
					return err
				}
				f.Duration = &h
			}
			if changed("day") {
				d, err := parseDate("day", day)
				if err != nil {
					return err
				}
				f.Day = &d
			}
			if changed("order") {
				f.DayOrder = &order
			}
			if changed("finished") {
				f.Finished = &finished
			}
			if changed("notes") {
				f.Notes = &notes
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				ch, err := a.Planner().UpdateChunk(ctx, uid, id, f)
				if err != nil {
					return err
				}
				return e.output(cmd, ch, func(w io.Writer) { printChange(w, "Updated", ch) })
			})
		},
	}
	cmd.Flags().StringVar(&duration, "duration", "", "duration in hours")
	cmd.Flags().StringVar(&day, "day", "", "new day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&order, "order", 0, "position within the day")
	cmd.Flags().BoolVar(&finished, "finished", false, "finished state")
	cmd.Flags().StringVar(&notes, "notes", "", "free text")
	return cmd
}

func newChunkDeleteCommand(e *env) *cobra.Command {
	var postpone bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chunk",
		Long: `Delete a chunk. Without --postpone the task shrinks by the chunk's duration
and is deleted once nothing is left. With --postpone the duration goes back
to the unscheduled part of the task.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				taskDeleted, err := a.Planner().DeleteChunk(ctx, uid, id, postpone)
				if err != nil {
					return err
				}
				res := struct {
					Deleted     int64 `json:"deleted"`
					TaskDeleted bool  `json:"task_deleted"`
				}{id, taskDeleted}
				return e.output(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted chunk #%d\n", id)
					if taskDeleted {
						fmt.Fprintln(w, "Task had no duration left and was deleted")
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&postpone, "postpone", false, "keep the duration on the task")
	return cmd
}

func newChunkSplitCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "split <id> <hours>",
		Short: "Split a chunk after <hours>",
		Long:  `Keep <hours> on the chunk and move the rest into a new chunk ordered directly after it.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			at, err := parseHours("duration", args[1])
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				res, err := a.Planner().SplitChunk(ctx, uid, id, at)
				if err != nil {
					return err
				}
				return e.output(cmd, res, func(w io.Writer) {
					chunksTable(w, []domain.Chunk{res.Original, res.New})
				})
			})
		},
	}
}
