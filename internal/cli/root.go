// Package cli provides the taskplan operator command line.
package cli

import (
	"context"
	"os"
	"strings"

	"taskplan/internal/app"
	"taskplan/internal/domain"

	"github.com/spf13/cobra"
)

// Command group IDs.
const (
	groupPlan    = "plan"
	groupService = "service"
)

// env carries the persistent flags shared by every command.
type env struct {
	cfgPath string
	user    string
	asJSON  bool
}

// NewRootCommand builds the command tree. Commands open the app lazily so
// --help works without a database.
func NewRootCommand(version string) *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:   "taskplan",
		Short: "Plan tasks into daily chunks and recurring series",
		Long: `taskplan schedules work: tasks carry a total duration, chunks place
slices of that duration on concrete days in a per-day order, and series
materialize chunks from a recurrence rule.

Configuration is read from --config (JSON, YAML or TOML) and TASKPLAN_*
environment variables.`,
		Version: version,
		// errors are printed by main together with the exit code
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&e.cfgPath, "config", "c", os.Getenv("TASKPLAN_CONFIG"), "config file (.json, .yaml, .toml)")
	root.PersistentFlags().StringVarP(&e.user, "user", "u", os.Getenv("TASKPLAN_USER"), "name of the user the command acts for")
	root.PersistentFlags().BoolVar(&e.asJSON, "json", false, "print JSON instead of tables")

	root.AddGroup(
		&cobra.Group{ID: groupPlan, Title: "Planning Commands:"},
		&cobra.Group{ID: groupService, Title: "Service Commands:"},
	)
	for _, c := range []*cobra.Command{
		newUserCommand(e),
		newTaskCommand(e),
		newChunkCommand(e),
		newSeriesCommand(e),
		newCapacityCommand(e),
		newExportCommand(e),
	} {
		c.GroupID = groupPlan
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{newServeCommand(e), newAdvanceCommand(e)} {
		c.GroupID = groupService
		root.AddCommand(c)
	}
	return root
}

// withApp opens the app for the duration of one command.
func (e *env) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, e.cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}

// userID resolves --user.
func (e *env) userID(ctx context.Context, a *app.App) (int64, error) {
	name := strings.TrimSpace(e.user)
	if name == "" {
		return 0, domain.Invalid("user", "--user (or TASKPLAN_USER) is required")
	}
	u, err := a.Planner().UserByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// withUser is withApp plus --user resolution.
func (e *env) withUser(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, userID int64) error) error {
	return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
		uid, err := e.userID(ctx, a)
		if err != nil {
			return err
		}
		return fn(ctx, a, uid)
	})
}
