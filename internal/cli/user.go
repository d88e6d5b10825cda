package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"taskplan/internal/app"
	"taskplan/internal/domain"

	"github.com/spf13/cobra"
)

func newUserCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and their daily capacity",
	}
	cmd.AddCommand(newUserCreateCommand(e), newUserListCommand(e), newUserCapacityCommand(e))
	return cmd
}

// capacityFlags parses --weekday/--weekend; unset flags keep base.
type capacityFlags struct {
	weekday string
	weekend string
}

func (f *capacityFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.weekday, "weekday", "", "hours available monday to friday")
	cmd.Flags().StringVar(&f.weekend, "weekend", "", "hours available on saturday and sunday")
}

func (f *capacityFlags) apply(base domain.Capacity) (domain.Capacity, error) {
	var err error
	if f.weekday != "" {
		if base.Weekday, err = parseHours("capacity_weekday", f.weekday); err != nil {
			return base, err
		}
	}
	if f.weekend != "" {
		if base.Weekend, err = parseHours("capacity_weekend", f.weekend); err != nil {
			return base, err
		}
	}
	return base, nil
}

func (f *capacityFlags) set() bool { return f.weekday != "" || f.weekend != "" }

func newUserCreateCommand(e *env) *cobra.Command {
	var capf capacityFlags
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a user",
		Long: `Create a user. Capacity defaults to planner.default_capacity from the
configuration unless --weekday or --weekend is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var c *domain.Capacity
				if capf.set() {
					v, err := capf.apply(a.Planner().Settings().DefaultCapacity)
					if err != nil {
						return err
					}
					c = &v
				}
				u, err := a.Planner().CreateUser(ctx, args[0], c)
				if err != nil {
					return err
				}
				return e.output(cmd, u, func(w io.Writer) {
					fmt.Fprintf(w, "Created user %d (%s)\n", u.ID, u.Name)
				})
			})
		},
	}
	capf.bind(cmd)
	return cmd
}

func newUserListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				users, err := a.Planner().ListUsers(ctx)
				if err != nil {
					return err
				}
				return e.output(cmd, users, func(w io.Writer) {
					table(w, "ID\tNAME\tWEEKDAY\tWEEKEND", func(tw *tabwriter.Writer) {
						for _, u := range users {
							fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Weekday, u.Weekend)
						}
					})
				})
			})
		},
	}
}

func newUserCapacityCommand(e *env) *cobra.Command {
	var capf capacityFlags
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Show or change the capacity of --user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				u, err := a.Planner().GetUser(ctx, uid)
				if err != nil {
					return err
				}
				if capf.set() {
					c, err := capf.apply(u.Capacity)
					if err != nil {
						return err
					}
					if err := a.Planner().SetCapacity(ctx, uid, c); err != nil {
						return err
					}
					u.Capacity = c
				}
				return e.output(cmd, u.Capacity, func(w io.Writer) {
					fmt.Fprintf(w, "%s: weekday %s h, weekend %s h\n", u.Name, u.Weekday, u.Weekend)
				})
			})
		},
	}
	capf.bind(cmd)
	return cmd
}
