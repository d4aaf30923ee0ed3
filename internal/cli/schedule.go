package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/infektyd/syntra"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		strategy string
		in       time.Duration
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the rehearsal loop in the foreground",
		Long: "Run the rehearsal loop until interrupted or until --duration elapses.\n" +
			"With --strategy, one session is queued to run after --in.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			if strategy != "" {
				id, err := a.engine.Schedule(ctx, time.Now().Add(in), syntra.RehearsalStrategy(strategy), a.engine.DefaultContext("scheduled"))
				if err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "queued %s as %s\n", strategy, id)
			}

			if err := a.engine.Start(ctx); err != nil {
				return err
			}
			a.logger.Info("rehearsal loop started",
				zap.Duration("interval", a.cfg.Rehearsal.Interval),
				zap.Duration("poll", a.cfg.Rehearsal.PollInterval))
			<-ctx.Done()
			a.engine.Stop()

			stats := a.engine.Statistics()
			if a.format == "json" {
				return writeJSON(out(cmd), stats)
			}
			fmt.Fprintf(out(cmd), "%d sessions, average effectiveness %.3f, %d still pending\n",
				stats.TotalSessions, stats.AverageEffectiveness, stats.Pending)
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Queue one session of this strategy")
	cmd.Flags().DurationVar(&in, "in", 0, "Delay before the queued session is due")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: until interrupted)")
	return cmd
}
