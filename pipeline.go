package syntra

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
	"golang.org/x/sync/errgroup"
)

// Result is the output of one pipeline pass.
type Result struct {
	TraceID   string                 `json:"trace_id"`
	Affect    AffectAssessment       `json:"affect"`
	Logic     LogicAssessment        `json:"logic"`
	Synthesis Synthesis              `json:"synthesis"`
	Response  ConversationalResponse `json:"response"`

	// MemoryID is the trace written for this pass, empty when the pipeline
	// has no memory or the pass was cancelled before the store.
	MemoryID string `json:"memory_id,omitempty"`

	// Degraded is set when either assessment came from the rule-based
	// fallback.
	Degraded bool `json:"degraded,omitempty"`
}

// MonitoredResult is a Result with the drift check of its pass.
type MonitoredResult struct {
	Result
	DriftAlert         DriftAlert `json:"drift_alert"`
	FrameworkIntegrity float64    `json:"framework_integrity"`
	CorrectionApplied  bool       `json:"correction_applied"`

	// OriginalSynthesis holds the replaced synthesis when a correction
	// was applied.
	OriginalSynthesis *Synthesis `json:"original_synthesis,omitempty"`

	// CorrectionError is set when a required correction failed. The
	// original synthesis is kept in that case.
	CorrectionError error `json:"-"`
}

// Pipeline runs assessment, synthesis, drift gating and rendering for one
// input, and records the pass in memory.
type Pipeline struct {
	affect    *AffectAssessor
	logic     *LogicAssessor
	synthesis *SynthesisEngine
	renderer  *Renderer
	drift     *DriftMonitor
	memory    *Memory
	degraded  bool
}

// NewPipeline creates a pipeline with default components and the default
// reference baseline. Memory is off until WithMemory is called.
func NewPipeline() *Pipeline {
	return &Pipeline{
		affect:    NewAffectAssessor(),
		logic:     NewLogicAssessor(),
		synthesis: NewSynthesisEngine(),
		renderer:  NewRenderer(),
		drift:     NewDriftMonitor(DefaultBaseline()),
	}
}

// NewPipelineFromConfig builds a pipeline, its memory and its drift
// monitor from cfg.
func NewPipelineFromConfig(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	baseline := DefaultBaseline()
	switch {
	case cfg.BaselinePath != "":
		b, err := LoadBaseline(cfg.BaselinePath)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		baseline = b
	case cfg.Baseline != nil:
		b, err := NewReferenceBaseline(*cfg.Baseline)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		baseline = b
	}

	g := cfg.Generation
	affect := NewAffectAssessor().WithTemperature(g.AssessmentTemperature).WithTimeout(g.Timeout)
	logic := NewLogicAssessor().WithTemperature(g.AssessmentTemperature).WithTimeout(g.Timeout)
	if g.StructuredOutput {
		affect.WithStructuredOutput()
		logic.WithStructuredOutput()
	}

	return &Pipeline{
		affect:    affect,
		logic:     logic,
		synthesis: NewSynthesisEngine().WithTemperature(g.SynthesisTemperature).WithTimeout(g.Timeout),
		renderer:  NewRenderer().WithTemperature(g.RenderTemperature).WithTimeout(g.Timeout),
		drift:     NewDriftMonitor(baseline),
		memory:    NewMemory(cfg.Memory),
		degraded:  g.DegradedFallback,
	}, nil
}

// WithProvider sets the provider on every component.
func (p *Pipeline) WithProvider(provider Provider) *Pipeline {
	p.affect.WithProvider(provider)
	p.logic.WithProvider(provider)
	p.synthesis.WithProvider(provider)
	p.renderer.WithProvider(provider)
	return p
}

// WithAffect replaces the affect assessor.
func (p *Pipeline) WithAffect(a *AffectAssessor) *Pipeline {
	p.affect = a
	return p
}

// WithLogic replaces the logic assessor.
func (p *Pipeline) WithLogic(l *LogicAssessor) *Pipeline {
	p.logic = l
	return p
}

// WithSynthesis replaces the synthesis engine.
func (p *Pipeline) WithSynthesis(s *SynthesisEngine) *Pipeline {
	p.synthesis = s
	return p
}

// WithRenderer replaces the renderer.
func (p *Pipeline) WithRenderer(r *Renderer) *Pipeline {
	p.renderer = r
	return p
}

// WithDriftMonitor replaces the drift monitor.
func (p *Pipeline) WithDriftMonitor(m *DriftMonitor) *Pipeline {
	p.drift = m
	return p
}

// WithMemory records one trace per completed pass in m.
func (p *Pipeline) WithMemory(m *Memory) *Pipeline {
	p.memory = m
	return p
}

// WithDegradedFallback substitutes rule-based assessments when the
// generation capability is unavailable for an assessor.
func (p *Pipeline) WithDegradedFallback() *Pipeline {
	p.degraded = true
	return p
}

// WithStructuredOutput switches both assessors to schema-constrained
// extraction.
func (p *Pipeline) WithStructuredOutput() *Pipeline {
	p.affect.WithStructuredOutput()
	p.logic.WithStructuredOutput()
	return p
}

// Memory returns the pipeline's memory, or nil.
func (p *Pipeline) Memory() *Memory {
	return p.memory
}

// DriftMonitor returns the pipeline's drift monitor.
func (p *Pipeline) DriftMonitor() *DriftMonitor {
	return p.drift
}

// Process runs one pass without drift gating.
func (p *Pipeline) Process(ctx context.Context, input, prior string) (Result, error) {
	r, err := p.run(ctx, input, prior, false)
	if err != nil {
		return Result{}, err
	}
	return r.Result, nil
}

// ProcessWithDriftMonitoring runs one pass with drift gating. When the
// drift check requires preservation, synthesis is re-run with a
// preservation block and the corrected synthesis replaces the original.
// A failed correction keeps the original and sets CorrectionError.
func (p *Pipeline) ProcessWithDriftMonitoring(ctx context.Context, input, prior string) (MonitoredResult, error) {
	return p.run(ctx, input, prior, true)
}

// Stage identities of one pass.
var (
	passID       = pipz.NewIdentity("syntra.pass", "Assessment, synthesis, drift gate and render for one input")
	assessID     = pipz.NewIdentity("assess", "Affect and logic assessments, run concurrently")
	synthesizeID = pipz.NewIdentity("synthesize", "Weighted synthesis of both assessments")
	driftGateID  = pipz.NewIdentity("drift-gate", "Baseline drift check with corrective re-synthesis")
	renderID     = pipz.NewIdentity("render", "Conversational reply")
)

// pass is the value threaded through the stages.
type pass struct {
	input     string
	prior     string
	monitor   bool
	synthesis Synthesis
	out       MonitoredResult
}

// stages composes one pass. The drift gate runs only for monitored passes.
func (p *Pipeline) stages() *pipz.Sequence[*pass] {
	return pipz.NewSequence[*pass](passID,
		pipz.Apply(assessID, p.assessStage),
		pipz.Apply(synthesizeID, p.synthesizeStage),
		pipz.Mutate(driftGateID, p.driftStage, func(_ context.Context, s *pass) bool {
			return s.monitor && p.drift != nil
		}),
		pipz.Apply(renderID, p.renderStage),
	)
}

func (p *Pipeline) run(ctx context.Context, input, prior string, monitor bool) (MonitoredResult, error) {
	start := time.Now()
	traceID := ulid.Make().String()

	if err := validateInput(input); err != nil {
		return MonitoredResult{}, p.fail(ctx, traceID, start, err)
	}

	capitan.Emit(ctx, PassStarted,
		FieldTraceID.Field(traceID),
		FieldInputSize.Field(len([]rune(input))),
	)

	s := &pass{input: input, prior: prior, monitor: monitor}
	s.out.TraceID = traceID
	if _, err := p.stages().Process(ctx, s); err != nil {
		return MonitoredResult{}, p.fail(ctx, traceID, start, stageError(err))
	}
	out := s.out

	// A pass cancelled at any point before the store writes nothing.
	if p.memory != nil && ctx.Err() == nil {
		affect, logic, synthesis := out.Affect, out.Logic, out.Synthesis
		out.MemoryID = p.memory.Store(ctx, input,
			affect.PrimaryEmotion.Valence()*(0.5+0.5*affect.MoralUrgency),
			math.Max(affect.MoralUrgency, logic.Rigor),
			FormationContext{
				ConsciousnessState: string(synthesis.ConsciousnessType),
				ConsciousnessLevel: synthesis.DecisionConfidence,
				EmotionalState:     string(affect.PrimaryEmotion),
				EnvironmentTags:    []string{string(logic.TechnicalDomain), string(logic.ReasoningFramework)},
			},
		)
	}

	capitan.Emit(ctx, PassCompleted,
		FieldTraceID.Field(traceID),
		FieldValonInfluence.Field(float32(out.Synthesis.ValonInfluence)),
		FieldDuration.Field(time.Since(start)),
	)
	return out, nil
}

// stageError strips the stage path so callers see the component error.
func stageError(err error) error {
	var perr *pipz.Error[*pass]
	if errors.As(err, &perr) && perr.Err != nil {
		return perr.Err
	}
	return err
}

func (p *Pipeline) assessStage(ctx context.Context, s *pass) (*pass, error) {
	affect, logic, err := p.assess(ctx, s.input, s.prior)
	if err != nil {
		return s, err
	}
	s.out.Affect, s.out.Logic = affect, logic
	s.out.Degraded = affect.Degraded || logic.Degraded
	return s, nil
}

func (p *Pipeline) synthesizeStage(ctx context.Context, s *pass) (*pass, error) {
	synthesis, err := p.synthesis.Synthesize(ctx, s.out.Affect, s.out.Logic, s.input)
	if err != nil {
		return s, err
	}
	s.synthesis = synthesis
	return s, nil
}

func (p *Pipeline) driftStage(ctx context.Context, s *pass) *pass {
	alert := p.drift.AnalyzeResponse(ctx, s.out.Affect, s.synthesis.Decision)
	s.out.DriftAlert = alert
	s.out.FrameworkIntegrity = alert.FrameworkIntegrity
	if alert.PreservationRequired {
		s.synthesis = p.correct(ctx, &s.out, s.out.Affect, s.out.Logic, s.input, s.synthesis)
	}
	return s
}

func (p *Pipeline) renderStage(ctx context.Context, s *pass) (*pass, error) {
	s.out.Synthesis = s.synthesis
	response, err := p.renderer.Render(ctx, s.synthesis, s.input, s.prior)
	if err != nil {
		return s, err
	}
	s.out.Response = response
	return s, nil
}

// assess runs both assessors concurrently. Either failing fails the pass
// unless degraded fallback covers an unavailable capability.
func (p *Pipeline) assess(ctx context.Context, input, prior string) (AffectAssessment, LogicAssessment, error) {
	var (
		affect AffectAssessment
		logic  LogicAssessment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := p.affect.Assess(gctx, input, prior)
		if err != nil && p.fallback(ctx, "affect", err) {
			a, err = FallbackAffect(input), nil
		}
		affect = a
		return err
	})
	g.Go(func() error {
		l, err := p.logic.Assess(gctx, input, prior)
		if err != nil && p.fallback(ctx, "logic", err) {
			l, err = FallbackLogic(input), nil
		}
		logic = l
		return err
	})
	if err := g.Wait(); err != nil {
		return AffectAssessment{}, LogicAssessment{}, err
	}
	if err := ctx.Err(); err != nil {
		return AffectAssessment{}, LogicAssessment{}, err
	}
	return affect, logic, nil
}

func (p *Pipeline) fallback(ctx context.Context, component string, err error) bool {
	if !p.degraded || !errors.Is(err, ErrCapabilityUnavailable) {
		return false
	}
	capitan.Emit(ctx, AssessmentDegraded,
		FieldComponent.Field(component),
		FieldMode.Field("degraded"),
		FieldError.Field(err),
	)
	return true
}

func (p *Pipeline) correct(ctx context.Context, out *MonitoredResult, affect AffectAssessment, logic LogicAssessment, input string, original Synthesis) Synthesis {
	corrected, err := p.synthesis.SynthesizeWithPreservation(ctx, affect, logic, input, out.DriftAlert.PreservationBlock())
	if err != nil {
		out.CorrectionError = err
		capitan.Error(ctx, CorrectionFailed,
			FieldTraceID.Field(out.TraceID),
			FieldSeverity.Field(string(out.DriftAlert.Severity)),
			FieldError.Field(err),
		)
		return original
	}
	out.OriginalSynthesis = &original
	out.CorrectionApplied = true
	capitan.Emit(ctx, CorrectionApplied,
		FieldTraceID.Field(out.TraceID),
		FieldSeverity.Field(string(out.DriftAlert.Severity)),
		FieldMagnitude.Field(float32(out.DriftAlert.Magnitude)),
	)
	return corrected
}

func (p *Pipeline) fail(ctx context.Context, traceID string, start time.Time, err error) error {
	capitan.Error(ctx, PassFailed,
		FieldTraceID.Field(traceID),
		FieldDuration.Field(time.Since(start)),
		FieldError.Field(err),
	)
	return fmt.Errorf("pipeline: %w", err)
}
