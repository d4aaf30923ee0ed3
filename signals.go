package syntra

import "github.com/zoobzio/capitan"

// Signal definitions for syntra events.
// Signals follow the pattern: syntra.<entity>.<event>.
var (
	// Pass lifecycle signals.
	PassStarted = capitan.NewSignal(
		"syntra.pass.started",
		"Pipeline pass began for a new input",
	)
	PassCompleted = capitan.NewSignal(
		"syntra.pass.completed",
		"Pipeline pass produced a rendered response",
	)
	PassFailed = capitan.NewSignal(
		"syntra.pass.failed",
		"Pipeline pass stopped before rendering",
	)

	// Assessment signals.
	AssessmentCompleted = capitan.NewSignal(
		"syntra.assessment.completed",
		"Affect or logic assessment produced a structured result",
	)
	AssessmentFailed = capitan.NewSignal(
		"syntra.assessment.failed",
		"Affect or logic assessment encountered an error",
	)
	AssessmentDegraded = capitan.NewSignal(
		"syntra.assessment.degraded",
		"Rule-based fallback assessment substituted for generation",
	)

	// Synthesis signals.
	SynthesisCompleted = capitan.NewSignal(
		"syntra.synthesis.completed",
		"Synthesis combined both assessments into a decision",
	)
	SynthesisFailed = capitan.NewSignal(
		"syntra.synthesis.failed",
		"Synthesis generation or validation failed",
	)

	// Render signals.
	RenderCompleted = capitan.NewSignal(
		"syntra.render.completed",
		"Renderer produced a conversational reply",
	)
	RenderFailed = capitan.NewSignal(
		"syntra.render.failed",
		"Reply generation failed",
	)

	// Drift signals.
	DriftChecked = capitan.NewSignal(
		"syntra.drift.checked",
		"Drift monitor compared an assessment against the baseline",
	)
	CorrectionApplied = capitan.NewSignal(
		"syntra.drift.corrected",
		"Preservation re-synthesis replaced the original synthesis",
	)
	CorrectionFailed = capitan.NewSignal(
		"syntra.drift.correction_failed",
		"Preservation re-synthesis failed; original synthesis kept",
	)

	// Memory signals.
	TraceStored = capitan.NewSignal(
		"syntra.memory.stored",
		"Experience trace stored in the fast stream",
	)
	MemoryConsolidated = capitan.NewSignal(
		"syntra.memory.consolidated",
		"Consolidation pass moved traces from fast to slow stream",
	)
	MemoryDecayed = capitan.NewSignal(
		"syntra.memory.decayed",
		"Decay sweep applied forgetting curves and pruned weak traces",
	)

	// Rehearsal signals.
	RehearsalCompleted = capitan.NewSignal(
		"syntra.rehearsal.completed",
		"Rehearsal session strengthened a memory subset",
	)
	RehearsalScheduled = capitan.NewSignal(
		"syntra.rehearsal.scheduled",
		"Delayed rehearsal session queued",
	)
	RehearsalFailed = capitan.NewSignal(
		"syntra.rehearsal.failed",
		"Scheduled rehearsal session could not run",
	)

	// Persistence signals.
	JournalFailed = capitan.NewSignal(
		"syntra.journal.failed",
		"Journal write failed; in-memory state is unaffected",
	)
)

// Field keys for syntra event data.
var (
	// Pass metadata.
	FieldTraceID   = capitan.NewStringKey("trace_id")
	FieldComponent = capitan.NewStringKey("component") // affect, logic, synthesis, render, correction
	FieldInputSize = capitan.NewIntKey("input_size")  // character count

	// Generation metadata.
	FieldProvider    = capitan.NewStringKey("provider")
	FieldTemperature = capitan.NewFloat32Key("temperature")
	FieldMode        = capitan.NewStringKey("mode") // keyword, structured, degraded

	// Assessment and synthesis results.
	FieldEmotion        = capitan.NewStringKey("emotion")
	FieldFramework      = capitan.NewStringKey("framework")
	FieldValonInfluence = capitan.NewFloat32Key("valon_influence")
	FieldConflictCount  = capitan.NewIntKey("conflict_count")
	FieldTone           = capitan.NewStringKey("tone")

	// Drift results.
	FieldSeverity  = capitan.NewStringKey("severity")
	FieldDriftType = capitan.NewStringKey("drift_type")
	FieldMagnitude = capitan.NewFloat32Key("magnitude")
	FieldIntegrity = capitan.NewFloat32Key("integrity")

	// Memory metadata.
	FieldMemoryID  = capitan.NewStringKey("memory_id")
	FieldStream    = capitan.NewStringKey("stream")
	FieldFastCount = capitan.NewIntKey("fast_count")
	FieldSlowCount = capitan.NewIntKey("slow_count")
	FieldMoved     = capitan.NewIntKey("moved")
	FieldPruned    = capitan.NewIntKey("pruned")

	// Rehearsal metadata.
	FieldSessionID     = capitan.NewStringKey("session_id")
	FieldStrategy      = capitan.NewStringKey("strategy")
	FieldItemCount     = capitan.NewIntKey("item_count")
	FieldEffectiveness = capitan.NewFloat32Key("effectiveness")

	// Timing.
	FieldDuration = capitan.NewDurationKey("duration")

	// Error information.
	FieldError = capitan.NewErrorKey("error")
)
