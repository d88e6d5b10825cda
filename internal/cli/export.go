package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"taskplan/internal/app"
	"taskplan/internal/domain"
	"taskplan/internal/ics"

	"github.com/spf13/cobra"
)

func newExportCommand(e *env) *cobra.Command {
	var (
		out      string
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export chunks and series as an iCalendar file",
		Long: `Write an iCalendar (RFC 5545) feed of --user: one all-day event per chunk and
one recurring event per active series.`,
		Example: `  taskplan export -u alice --out plan.ics
  taskplan export -u alice --from 2026-11-01 --to 2026-11-30 > november.ics`,
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
			return e.withUser(cmd, func(ctx context.Context, a *app.App, uid int64) error {
				u, err := a.Planner().GetUser(ctx, uid)
				if err != nil {
					return err
				}
				tasks, err := a.Planner().ListTasks(ctx, uid, false)
				if err != nil {
					return err
				}
				chunks, err := a.Planner().ListChunks(ctx, uid, f)
				if err != nil {
					return err
				}
				series, err := a.Planner().ListSeries(ctx, uid, true)
				if err != nil {
					return err
				}

				var w io.Writer = cmd.OutOrStdout()
				if out != "" && out != "-" {
					file, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("create %s: %w", out, err)
					}
					defer file.Close()
					w = file
				}
				in := ics.ExportInput{
					CalendarName: "taskplan: " + u.Name,
					Tasks:        tasks,
					Chunks:       chunks,
					Series:       series,
				}
				if err := ics.Export(w, in); err != nil {
					return err
				}
				if w != cmd.OutOrStdout() {
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d chunks and %d series to %s\n", len(chunks), len(series), out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	cmd.Flags().StringVar(&from, "from", "", "first day of exported chunks (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day of exported chunks (YYYY-MM-DD)")
	return cmd
}
