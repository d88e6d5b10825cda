package cli

import (
	"context"
	"fmt"
	"io"

	"taskplan/internal/app"

	"github.com/spf13/cobra"
)

func newCapacityCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Query free capacity",
	}
	cmd.AddCommand(newCapacityNextCommand(e))
	return cmd
}

func newCapacityNextCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "next <hours>",
		Short: "Print the first day from today with room for <hours>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			need, err := parseHours("duration", args[0])
			if err != nil {
				return err
			}
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				day, err := a.Planner().NextDayWithCapacity(ctx, uid, need)
				if err != nil {
					return err
				}
				return e.output(cmd, map[string]string{"day": day.String()}, func(w io.Writer) {
					fmt.Fprintln(w, day)
				})
			})
		},
	}
}
