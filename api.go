// Package syntra provides a two-perspective reasoning pipeline with drift
// monitoring and dual-stream memory for Go.
//
// syntra reads every input twice, once for its values and once for its
// reasoning, combines both readings into a single decision, checks that
// decision against a fixed reference baseline, and remembers the exchange
// in a memory that consolidates and rehearses on its own cadence.
//
// # Core Types
//
//   - [AffectAssessment] - emotion, moral urgency and activated principles
//   - [LogicAssessment] - reasoning framework, rigor, domain and complexity
//   - [Synthesis] - the unified decision with its influence split
//   - [DriftAlert] - deviation from the [ReferenceBaseline]
//   - [MemoryTrace] - one remembered experience
//
// # Pipeline
//
// [Pipeline] wires the components together:
//
//	p := syntra.NewPipeline().
//		WithProvider(provider).
//		WithMemory(syntra.NewMemory(syntra.DefaultMemoryConfig()))
//
//	result, err := p.ProcessWithDriftMonitoring(ctx, "Should I report my colleague?", "")
//	fmt.Println(result.Response.Text, result.DriftAlert.Severity)
//
// Affect and logic assessments run concurrently. When the drift check
// requires preservation, synthesis runs again with a preservation block
// and the corrected synthesis replaces the original. A failed correction
// keeps the original and is reported in [MonitoredResult.CorrectionError].
//
// # Components
//
//   - [NewAffectAssessor] - value perspective
//   - [NewLogicAssessor] - reasoning perspective
//   - [NewSynthesisEngine] - weighted influence synthesis
//   - [NewDriftMonitor] - baseline comparison and integrity report
//   - [NewRenderer] - conversational reply
//
// Assessors parse free-form generations with keyword tables by default.
// WithStructuredOutput switches them to schema-constrained extraction,
// and WithExtractor replaces the keyword parser.
//
// # Memory
//
// [Memory] keeps a fast stream for new experiences and a slow stream for
// consolidated ones. [Memory.Consolidate] moves qualifying traces,
// [Memory.ApplyDecay] applies forgetting curves, and
// [Memory.Retrieve] ranks traces by relevance. [RehearsalEngine] runs
// one of eight rehearsal strategies per session, either on demand, on a
// schedule, or from its background loop.
//
// # Provider
//
// Generation access uses a resolution hierarchy:
//
//  1. Explicit parameter (.WithProvider(p))
//  2. Context value (syntra.WithProvider(ctx, p))
//  3. Global default (syntra.SetProvider(p))
//
// The claude subpackage adapts the Anthropic API to [Provider].
//
// # Persistence
//
// [Journal] stores drift alerts, rehearsal sessions and memory snapshots.
// [SQLiteJournal] writes a local file; [SoyJournal] uses soy for
// PostgreSQL:
//
//	journal, err := syntra.NewSoyJournal(db)
//
// # Errors
//
// Failures wrap [ErrInvalidInput], [ErrCapabilityUnavailable],
// [ErrGenerationFailed] or [ErrValidationFailed]. [Classify] separates
// "unavailable on this configuration" from transient errors.
//
// # Observability
//
// syntra emits capitan signals throughout execution. See signals.go for
// the complete list, including PassStarted, SynthesisCompleted,
// DriftChecked, MemoryConsolidated and RehearsalCompleted.
package syntra
