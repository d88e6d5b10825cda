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

func newTaskCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(
		newTaskCreateCommand(e),
		newTaskListCommand(e),
		newTaskShowCommand(e),
		newTaskUpdateCommand(e),
		newTaskDeleteCommand(e),
		newTaskMergeCommand(e),
	)
	return cmd
}

// taskFlags maps flags onto TaskFields. Only flags the user changed are set,
// so the same struct serves create and update.
type taskFlags struct {
	name     string
	duration string
	priority int
	start    string
	deadline string
	notes    string
	labels   []string
}

func (f *taskFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "task name (max 40 characters)")
	cmd.Flags().StringVar(&f.duration, "duration", "", "total duration in hours, e.g. 2.5")
	cmd.Flags().IntVar(&f.priority, "priority", domain.DefaultPriority,
		fmt.Sprintf("priority %d..%d", domain.MinPriority, domain.MaxPriority))
	cmd.Flags().StringVar(&f.start, "start", "", "earliest day (YYYY-MM-DD, none to clear)")
	cmd.Flags().StringVar(&f.deadline, "deadline", "", "due day (YYYY-MM-DD, none to clear)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free text")
	cmd.Flags().StringSliceVar(&f.labels, "label", nil, "label id (repeatable)")
}

func (f *taskFlags) fields(cmd *cobra.Command) (domain.TaskFields, error) {
	var out domain.TaskFields
	changed := cmd.Flags().Changed
	if changed("name") {
		out.Name = &f.name
	}
	if changed("duration") {
		h, err := parseHours("duration", f.duration)
		if err != nil {
			return out, err
		}
		out.Duration = &h
	}
	if changed("priority") {
		out.Priority = &f.priority
	}
	if changed("start") {
		d, err := parseOptionalDate("start", f.start)
		if err != nil {
			return out, err
		}
		out.Start = &d
	}
	if changed("deadline") {
		d, err := parseOptionalDate("deadline", f.deadline)
		if err != nil {
			return out, err
		}
		out.Deadline = &d
	}
	if changed("notes") {
		out.Notes = &f.notes
	}
	if changed("label") {
		labels, err := parseIDs("labels", f.labels)
		if err != nil {
			return out, err
		}
		if labels == nil {
			labels = []int64{}
		}
		out.Labels = &labels
	}
	return out, nil
}

func newTaskCreateCommand(e *env) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Example: `  taskplan task create --name "write report" --duration 6 --deadline 2026-11-30
  taskplan task create --name review --duration 1.5 --priority 8 --label 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := f.fields(cmd)
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				t, err := a.Planner().CreateTask(ctx, uid, fields)
				if err != nil {
					return err
				}
				return e.output(cmd, t, func(w io.Writer) {
					fmt.Fprintf(w, "Created task #%d: %s (%s h)\n", t.ID, t.Name, t.Duration)
				})
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newTaskListCommand(e *env) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Long:    `List tasks of --user. Tasks whose duration is completely scheduled are hidden unless --all is given.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				tasks, err := a.Planner().ListTasks(ctx, uid, !all)
				if err != nil {
					return err
				}
				return e.output(cmd, tasks, func(w io.Writer) { tasksTable(w, tasks) })
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completely scheduled tasks")
	return cmd
}

func newTaskShowCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				t, err := a.Planner().GetTask(ctx, uid, id)
				if err != nil {
					return err
				}
				chunks, err := a.Planner().ListChunks(ctx, uid, domain.ChunkFilter{TaskIDs: []int64{id}})
				if err != nil {
					return err
				}
				res := planner.MergeResult{Task: t, Chunks: chunks}
				return e.output(cmd, res, func(w io.Writer) {
					tasksTable(w, []domain.Task{t})
					if t.Notes != "" {
						fmt.Fprintf(w, "\n%s\n", t.Notes)
					}
					if len(chunks) > 0 {
						fmt.Fprintln(w)
						chunksTable(w, chunks)
					}
				})
			})
		},
	}
}

func newTaskUpdateCommand(e *env) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change task attributes",
		Long: `Change the attributes given as flags. The duration may not drop below the
duration already scheduled in chunks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			fields, err := f.fields(cmd)
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				t, err := a.Planner().UpdateTask(ctx, uid, id, fields)
				if err != nil {
					return err
				}
				return e.output(cmd, t, func(w io.Writer) {
					fmt.Fprintf(w, "Updated task #%d\n", t.ID)
				})
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newTaskDeleteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task with its chunks and series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				if err := a.Planner().DeleteTask(ctx, uid, id); err != nil {
					return err
				}
				return e.output(cmd, map[string]int64{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted task #%d\n", id)
				})
			})
		},
	}
}

func newTaskMergeCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <id> <other>",
		Short: "Move everything of <other> onto <id> and delete <other>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			other, err := parseID("other", args[1])
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				res, err := a.Planner().MergeTasks(ctx, uid, id, other)
				if err != nil {
					return err
				}
				return e.output(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Merged #%d into #%d (%s h, %d chunks)\n",
						other, res.Task.ID, res.Task.Duration, len(res.Chunks))
				})
			})
		},
	}
}
