package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"taskplan/internal/app"

	"github.com/spf13/cobra"
)

const stopTimeout = 15 * time.Second

func newServeCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the background series advancer",
		Long: `Run until interrupted. Every active series is advanced on
scheduler.advance_schedule, the config file is watched for changes and, under
systemd, readiness and watchdog notifications are sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, e.cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				_ = a.Stop(context.Background(), app.StopFatalError)
				return err
			}

			reason := app.StopSignal
			select {
			case <-ctx.Done():
			case <-a.Done():
				reason = app.StopFatalError
			}
			fatal := a.Err()

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			if err := a.Stop(stopCtx, reason); err != nil && fatal == nil {
				return err
			}
			return fatal
		},
	}
}

func newAdvanceCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Schedule the next batch of every active series once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rep, err := a.Planner().AdvanceAll(ctx)
				if err != nil {
					return err
				}
				if err := e.output(cmd, rep, func(w io.Writer) {
					fmt.Fprintf(w, "Advanced %d series: %d chunks, %d completed, %d failed (%s)\n",
						rep.Series, rep.Chunks, rep.Completed, rep.Failed, rep.Took.Round(time.Millisecond))
				}); err != nil {
					return err
				}
				if rep.Failed > 0 {
					return fmt.Errorf("%d series failed to advance", rep.Failed)
				}
				return nil
			})
		},
	}
}
