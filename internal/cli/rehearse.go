package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/infektyd/syntra"
	"github.com/spf13/cobra"
)

func strategyNames() string {
	names := make([]string, len(syntra.AllStrategies))
	for i, s := range syntra.AllStrategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func newRehearseCmd(a *app) *cobra.Command {
	var (
		strategy  string
		attention float64
	)
	cmd := &cobra.Command{
		Use:   "rehearse",
		Short: "Run one rehearsal session",
		Long: "Run one rehearsal session. Without --strategy the engine picks one from\n" +
			"recorded effectiveness. Strategies: " + strategyNames() + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var (
				session syntra.RehearsalSession
				err     error
			)
			if strategy == "" {
				session, err = a.engine.RunCycle(ctx)
			} else {
				rc := a.engine.DefaultContext("manual")
				if cmd.Flags().Changed("attention") {
					rc.Attention = attention
				}
				session, err = a.engine.RunSession(ctx, syntra.RehearsalStrategy(strategy), rc)
			}
			if errors.Is(err, syntra.ErrNoCandidates) {
				fmt.Fprintln(out(cmd), "nothing to rehearse")
				return nil
			}
			if err != nil {
				return err
			}

			if a.format == "json" {
				return writeJSON(out(cmd), session)
			}
			fmt.Fprintf(out(cmd), "%s: %d traces, effectiveness %.3f, retention +%.3f\n",
				session.Strategy, len(session.MemoryIDs), session.Effectiveness, session.RetentionImprovement)
			if len(session.DerivedIDs) > 0 {
				fmt.Fprintf(out(cmd), "derived %d traces\n", len(session.DerivedIDs))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Rehearsal strategy")
	cmd.Flags().Float64Var(&attention, "attention", 0, "Attention level for the session (default from config)")
	return cmd
}
