package cli

import (
	"fmt"
	"strings"

	"github.com/infektyd/syntra"
	"github.com/spf13/cobra"
)

func newMemoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and maintain the dual-stream memory",
	}
	cmd.AddCommand(
		newMemoryStatsCmd(a),
		newMemoryRecallCmd(a),
		newMemoryConsolidateCmd(a),
		newMemoryDecayCmd(a),
	)
	return cmd
}

func newMemoryStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.pipeline.Memory().Statistics()
			if a.format == "json" {
				return writeJSON(out(cmd), s)
			}
			w := out(cmd)
			fmt.Fprintf(w, "fast:     %d traces (avg strength %.3f)\n", s.FastCount, s.AvgFastStrength)
			fmt.Fprintf(w, "slow:     %d traces (avg strength %.3f)\n", s.SlowCount, s.AvgSlowStrength)
			fmt.Fprintf(w, "clusters: %d\n", s.ClusterCount)
			fmt.Fprintf(w, "links:    %d\n", s.LinkCount)
			fmt.Fprintf(w, "passes:   %d (%d consolidated, %d pruned)\n", s.ConsolidationPasses, s.ConsolidatedTotal, s.PrunedTotal)
			return nil
		},
	}
}

func parseStream(s string) (syntra.StreamFilter, error) {
	switch s {
	case "", "all":
		return syntra.StreamsAll, nil
	case "fast":
		return syntra.StreamsFast, nil
	case "slow":
		return syntra.StreamsSlow, nil
	default:
		return 0, fmt.Errorf("unknown stream %q (want all, fast or slow)", s)
	}
}

func newMemoryRecallCmd(a *app) *cobra.Command {
	var (
		limit       int
		stream      string
		minStrength float64
	)
	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Retrieve traces ranked by relevance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStream(stream)
			if err != nil {
				return err
			}
			results := a.pipeline.Memory().Retrieve(strings.Join(args, " "), filter, limit, minStrength)
			if a.format == "json" {
				if results == nil {
					results = []syntra.RetrievalResult{}
				}
				return writeJSON(out(cmd), results)
			}
			w := out(cmd)
			if len(results) == 0 {
				fmt.Fprintln(w, "no matching traces")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(w, "%.3f  %-10s  %s\n", r.Relevance, r.Trace.StreamType, r.Trace.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum results")
	cmd.Flags().StringVar(&stream, "stream", "all", "Stream to search: all, fast or slow")
	cmd.Flags().Float64Var(&minStrength, "min-strength", 0, "Minimum trace strength")
	return cmd
}

func newMemoryConsolidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Run one consolidation pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := a.pipeline.Memory().Consolidate(cmd.Context())
			if a.format == "json" {
				return writeJSON(out(cmd), r)
			}
			fmt.Fprintf(out(cmd), "%d candidates, %d moved, %d clusters created\n", r.Candidates, r.Moved, r.ClustersCreated)
			return nil
		},
	}
}

func newMemoryDecayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decay",
		Short: "Apply forgetting curves and prune weak traces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := a.pipeline.Memory().ApplyDecay(cmd.Context())
			if a.format == "json" {
				return writeJSON(out(cmd), r)
			}
			fmt.Fprintf(out(cmd), "%d decayed, %d pruned from fast, %d pruned from slow\n", r.Decayed, r.PrunedFast, r.PrunedSlow)
			return nil
		},
	}
}
