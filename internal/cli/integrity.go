package cli

import (
	"fmt"

	"github.com/infektyd/syntra"
	"github.com/spf13/cobra"
)

func newIntegrityCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Report framework integrity over recorded drift checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			alerts, err := a.journal.RecentDrift(cmd.Context(), limit)
			if err != nil {
				return err
			}
			monitor := syntra.NewDriftMonitor(a.pipeline.DriftMonitor().Baseline())
			monitor.Restore(alerts)
			report := monitor.Report()

			if a.format == "json" {
				return writeJSON(out(cmd), report)
			}
			w := out(cmd)
			fmt.Fprintf(w, "checks:      %d\n", report.TotalChecks)
			fmt.Fprintf(w, "integrity:   %.3f\n", report.CurrentIntegrity)
			fmt.Fprintf(w, "avg drift:   %.3f\n", report.RecentAverageMagnitude)
			fmt.Fprintf(w, "critical:    %d\n", report.CriticalCount)
			fmt.Fprintf(w, "corrections: %d\n", report.PreservationCount)
			fmt.Fprintf(w, "trend:       %s\n", report.Trend)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Number of recent drift checks to include")
	return cmd
}
