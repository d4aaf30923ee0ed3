package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/infektyd/syntra"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type askOptions struct {
	prior      string
	showAffect bool
	showLogic  bool
	showDrift  bool
	noMonitor  bool
}

func newAskCmd(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one reasoning pass and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, a, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&opts.prior, "prior", "", "Prior conversation context")
	cmd.Flags().BoolVar(&opts.showAffect, "show-affect", false, "Print the affect assessment")
	cmd.Flags().BoolVar(&opts.showLogic, "show-logic", false, "Print the logic assessment")
	cmd.Flags().BoolVar(&opts.showDrift, "show-drift", false, "Print the drift check")
	cmd.Flags().BoolVar(&opts.noMonitor, "no-monitor", false, "Skip drift monitoring and correction")
	return cmd
}

func runAsk(cmd *cobra.Command, a *app, opts askOptions, question string) error {
	provider, err := a.provider()
	if err != nil {
		return err
	}
	a.pipeline.WithProvider(provider)

	ctx := cmd.Context()
	var r syntra.MonitoredResult
	if opts.noMonitor {
		r.Result, err = a.pipeline.Process(ctx, question, opts.prior)
	} else {
		r, err = a.pipeline.ProcessWithDriftMonitoring(ctx, question, opts.prior)
	}
	if err != nil {
		a.logger.Error("pass failed", zap.Error(err), zap.String("category", string(syntra.Classify(err))))
		return err
	}
	if r.CorrectionError != nil {
		a.logger.Warn("correction failed, original synthesis kept", zap.Error(r.CorrectionError))
	}

	if a.format == "json" {
		return writeJSON(out(cmd), askView(r, opts))
	}
	writeAskText(out(cmd), r, opts)
	return nil
}

// askView limits the JSON document to the sections that were asked for.
func askView(r syntra.MonitoredResult, opts askOptions) map[string]any {
	view := map[string]any{
		"trace_id": r.TraceID,
		"response": r.Response,
	}
	if r.MemoryID != "" {
		view["memory_id"] = r.MemoryID
	}
	if r.Degraded {
		view["degraded"] = true
	}
	if opts.showAffect {
		view["affect"] = r.Affect
	}
	if opts.showLogic {
		view["logic"] = r.Logic
	}
	if opts.showDrift && !opts.noMonitor {
		view["drift"] = r.DriftAlert
		view["framework_integrity"] = r.FrameworkIntegrity
		view["correction_applied"] = r.CorrectionApplied
	}
	return view
}

func writeAskText(w io.Writer, r syntra.MonitoredResult, opts askOptions) {
	fmt.Fprintln(w, r.Response.Text)

	if opts.showAffect {
		a := r.Affect
		fmt.Fprintf(w, "\naffect: %s (urgency %.2f, weight %.2f)\n", a.PrimaryEmotion, a.MoralUrgency, a.Weight)
		if len(a.ActivatedPrinciples) > 0 {
			names := make([]string, len(a.ActivatedPrinciples))
			for i, p := range a.ActivatedPrinciples {
				names[i] = string(p)
			}
			fmt.Fprintf(w, "  principles: %s\n", strings.Join(names, ", "))
		}
		for _, c := range a.Concerns {
			fmt.Fprintf(w, "  concern: %s\n", c)
		}
	}
	if opts.showLogic {
		l := r.Logic
		fmt.Fprintf(w, "\nlogic: %s in %s (rigor %.2f, confidence %.2f)\n", l.ReasoningFramework, l.TechnicalDomain, l.Rigor, l.Confidence)
		for i, s := range l.ReasoningSteps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	if opts.showAffect || opts.showLogic {
		fmt.Fprintf(w, "\nsynthesis: valon %.2f / modi %.2f\n", r.Synthesis.ValonInfluence, r.Synthesis.ModiInfluence)
	}
	if opts.showDrift && !opts.noMonitor {
		d := r.DriftAlert
		fmt.Fprintf(w, "\ndrift: %s %s (magnitude %.3f, integrity %.3f)\n", d.Severity, d.DriftType, d.Magnitude, r.FrameworkIntegrity)
		if r.CorrectionApplied {
			fmt.Fprintln(w, "  correction applied")
		}
		for _, rec := range d.Recommendations {
			fmt.Fprintf(w, "  recommendation: %s\n", rec)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
