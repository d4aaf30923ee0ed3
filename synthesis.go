package syntra

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/zyn"
)

// ConsciousnessType classifies the interaction style of a synthesis.
type ConsciousnessType string

// Consciousness types.
const (
	ConsciousnessValueLed     ConsciousnessType = "value-led"
	ConsciousnessLogicLed     ConsciousnessType = "logic-led"
	ConsciousnessIntegrated   ConsciousnessType = "integrated"
	ConsciousnessDeliberative ConsciousnessType = "deliberative"
)

// IntegrationStrategy names how the two perspectives were combined.
type IntegrationStrategy string

// Integration strategies.
const (
	IntegrationWeighted   IntegrationStrategy = "weighted-synthesis"
	IntegrationConflict   IntegrationStrategy = "conflict-resolution"
	IntegrationCompromise IntegrationStrategy = "compromise"
	IntegrationPriority   IntegrationStrategy = "prioritization"
	IntegrationSequential IntegrationStrategy = "sequential"
	IntegrationBalanced   IntegrationStrategy = "balanced-integration"
)

// WisdomLevel is an ordinal grade of a synthesis.
type WisdomLevel int

// Wisdom levels, ordered.
const (
	WisdomNovice WisdomLevel = iota
	WisdomDeveloping
	WisdomCompetent
	WisdomProficient
	WisdomWise
)

var wisdomNames = [...]string{"novice", "developing", "competent", "proficient", "wise"}

func (w WisdomLevel) String() string {
	if w < 0 || int(w) >= len(wisdomNames) {
		return "unknown"
	}
	return wisdomNames[w]
}

// MarshalText implements encoding.TextMarshaler.
func (w WisdomLevel) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *WisdomLevel) UnmarshalText(b []byte) error {
	for i, n := range wisdomNames {
		if n == string(b) {
			*w = WisdomLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown wisdom level %q", string(b))
}

// Influence bounds. Both weights must land inside them and sum to one.
const (
	MinInfluence       = 0.3
	MaxInfluence       = 0.9
	InfluenceTolerance = 0.01
	maxConflicts       = 3
)

// Synthesis is the unified decision built from one affect and one logic
// assessment of the same input.
type Synthesis struct {
	ConsciousnessType   ConsciousnessType   `json:"consciousness_type"`
	DecisionConfidence  float64             `json:"decision_confidence"`
	IntegrationStrategy IntegrationStrategy `json:"integration_strategy"`
	Decision            string              `json:"decision"`
	ValonInfluence      float64             `json:"valon_influence"`
	ModiInfluence       float64             `json:"modi_influence"`
	Conflicts           []string            `json:"conflicts"`
	ConflictResolution  string              `json:"conflict_resolution"`
	EmergentInsights    []string            `json:"emergent_insights"`
	WisdomLevel         WisdomLevel         `json:"wisdom_level"`
	RepresentsGrowth    bool                `json:"represents_growth"`
	KeyLearnings        []string            `json:"key_learnings"`

	// Corrected is set when this synthesis came from a preservation pass.
	Corrected bool `json:"corrected,omitempty"`
}

// Validate checks the synthesis invariants.
func (s Synthesis) Validate() error {
	sum := s.ValonInfluence + s.ModiInfluence
	if math.Abs(sum-1) > InfluenceTolerance {
		return fmt.Errorf("%w: influence weights sum to %.4f", ErrValidationFailed, sum)
	}
	for name, v := range map[string]float64{"valon": s.ValonInfluence, "modi": s.ModiInfluence} {
		if v < MinInfluence-1e-9 || v > MaxInfluence+1e-9 {
			return fmt.Errorf("%w: %s influence %.4f outside [%.1f,%.1f]", ErrValidationFailed, name, v, MinInfluence, MaxInfluence)
		}
	}
	if s.DecisionConfidence < 0 || s.DecisionConfidence > 1 {
		return fmt.Errorf("%w: decision confidence %.4f outside [0,1]", ErrValidationFailed, s.DecisionConfidence)
	}
	if len(s.Conflicts) > maxConflicts {
		return fmt.Errorf("%w: %d conflicts exceeds %d", ErrValidationFailed, len(s.Conflicts), maxConflicts)
	}
	if strings.TrimSpace(s.Decision) == "" {
		return fmt.Errorf("%w: empty decision", ErrValidationFailed)
	}
	return nil
}

// Influence splits decision weight between the affect (valon) and logic
// (modi) perspectives. valon starts at 0.7, moves 0.1 for high urgency or
// rigor and 0.05 for moral or analytical wording, and is then bounded so
// that both weights fall in [MinInfluence, MaxInfluence]. That bounds valon
// to [0.3, 0.7], so the upward moves only offset downward ones.
func Influence(affect AffectAssessment, logic LogicAssessment, response string) (valon, modi float64) {
	valon = 0.7
	if affect.MoralUrgency > 0.8 {
		valon += 0.1
	}
	if logic.Rigor > 0.8 {
		valon -= 0.1
	}
	lower := strings.ToLower(response)
	if containsAny(lower, "moral", "ethical") {
		valon += 0.05
	}
	if containsAny(lower, "logical", "analytical") {
		valon -= 0.05
	}
	valon = clamp(valon, MinInfluence, MaxInfluence)
	// The complement has to respect the same bounds.
	valon = clamp(valon, 1-MaxInfluence, 1-MinInfluence)
	valon = math.Round(valon*1e6) / 1e6
	return valon, 1 - valon
}

var conflictCues = []string{"conflict", "tension", "oppose", "trade-off", "tradeoff", "dilemma", "competing", "at odds"}

// Conflicts lists value-versus-logic tensions, capped at three.
func Conflicts(affect AffectAssessment, logic LogicAssessment, response string) []string {
	var out []string
	if affect.MoralUrgency > 0.7 && logic.Rigor > 0.7 {
		out = append(out, "High moral urgency competes with demanding analytical rigor")
	}
	for _, s := range sentencesWith(response, maxConflicts, conflictCues...) {
		if len(out) == maxConflicts {
			break
		}
		out = append(out, s)
	}
	return out
}

var integrationRules = []keywordRule[IntegrationStrategy]{
	{IntegrationCompromise, []string{"compromise", "middle ground"}},
	{IntegrationPriority, []string{"prioritiz", "first and foremost", "above all"}},
	{IntegrationSequential, []string{"step by step", "first,", "in stages"}},
	{IntegrationBalanced, []string{"balance"}},
}

var (
	resolutionCues = []string{"resolve", "reconcile", "balance", "weigh", "prioritiz", "address both"}
	emergentCues   = []string{"insight", "emerg", "realiz", "reveals", "together", "deeper"}
	learningCues   = []string{"learn", "lesson", "takeaway", "remember", "important"}
	decisionCues   = []string{"recommend", "decision", "should", "best", "the right"}
)

// deriveSynthesis extracts a synthesis from the generated response.
func deriveSynthesis(affect AffectAssessment, logic LogicAssessment, response string) Synthesis {
	valon, modi := Influence(affect, logic, response)
	conflicts := Conflicts(affect, logic, response)
	lower := strings.ToLower(response)

	decision := ""
	if d := sentencesWith(response, 2, decisionCues...); len(d) > 0 {
		decision = strings.Join(d, " ")
	} else if s := sentences(response); len(s) > 0 {
		decision = s[0]
	}

	confidence := 0.4*logic.Confidence + 0.3*affect.Weight + 0.3 -
		0.1*float64(len(conflicts)) - 0.1*boolf(containsAny(lower, hedgeCues...))
	confidence = clamp(confidence, 0.1, 1)

	resolution := ""
	resolved := false
	if len(conflicts) == 0 {
		resolution = "No competing considerations identified."
	} else if r := sentencesWith(response, 1, resolutionCues...); len(r) > 0 {
		resolution = r[0]
		resolved = true
	} else if valon >= 0.5 {
		resolution = "Prioritize the values at stake while honoring the analytical constraints."
	} else {
		resolution = "Follow the analysis while protecting the values at stake."
	}

	strategy, ok := firstMatch(integrationRules, response)
	if !ok {
		strategy = IntegrationWeighted
		if len(conflicts) > 0 {
			strategy = IntegrationConflict
		}
	}

	var kind ConsciousnessType
	switch {
	case len(conflicts) > 0 && math.Abs(valon-0.5) <= 0.1:
		kind = ConsciousnessDeliberative
	case valon > 0.6:
		kind = ConsciousnessValueLed
	case valon < 0.4:
		kind = ConsciousnessLogicLed
	default:
		kind = ConsciousnessIntegrated
	}

	insights := sentencesWith(response, 3, emergentCues...)
	learnings := sentencesWith(response, 3, learningCues...)
	if len(learnings) == 0 && len(insights) > 0 {
		learnings = []string{insights[0]}
	}

	score := confidence + 0.1*float64(len(insights)) + 0.05*float64(logic.ComplexityLevel)
	if resolved {
		score += 0.1
	}
	var wisdom WisdomLevel
	switch {
	case score < 0.5:
		wisdom = WisdomNovice
	case score < 0.7:
		wisdom = WisdomDeveloping
	case score < 0.85:
		wisdom = WisdomCompetent
	case score < 1.0:
		wisdom = WisdomProficient
	default:
		wisdom = WisdomWise
	}

	return Synthesis{
		ConsciousnessType:   kind,
		DecisionConfidence:  confidence,
		IntegrationStrategy: strategy,
		Decision:            truncate(decision, 600),
		ValonInfluence:      valon,
		ModiInfluence:       modi,
		Conflicts:           conflicts,
		ConflictResolution:  resolution,
		EmergentInsights:    insights,
		WisdomLevel:         wisdom,
		RepresentsGrowth:    len(insights) > 0 && (len(conflicts) > 0 || logic.ComplexityLevel >= ComplexityComplex),
		KeyLearnings:        learnings,
	}
}

const synthesisPrompt = "Synthesis of two perspectives: combine the value reading and the reasoning " +
	"analysis below into one decision. State the decision, any tension between the perspectives and " +
	"how it is resolved, and what insight emerges from holding both."

// SynthesisEngine combines affect and logic assessments into a decision.
type SynthesisEngine struct {
	provider    Provider
	temperature float32
	timeout     time.Duration
}

// NewSynthesisEngine creates a synthesis engine with default settings.
func NewSynthesisEngine() *SynthesisEngine {
	return &SynthesisEngine{
		temperature: DefaultSynthesisTemperature,
		timeout:     DefaultGenerationTimeout,
	}
}

// WithProvider sets a component-level provider.
func (e *SynthesisEngine) WithProvider(p Provider) *SynthesisEngine {
	e.provider = p
	return e
}

// WithTemperature sets the generation temperature.
func (e *SynthesisEngine) WithTemperature(t float32) *SynthesisEngine {
	e.temperature = t
	return e
}

// WithTimeout bounds each provider call. Zero disables the bound.
func (e *SynthesisEngine) WithTimeout(d time.Duration) *SynthesisEngine {
	e.timeout = d
	return e
}

// Synthesize produces a validated synthesis for one pass.
func (e *SynthesisEngine) Synthesize(ctx context.Context, affect AffectAssessment, logic LogicAssessment, input string) (Synthesis, error) {
	return e.run(ctx, "synthesis", synthesisPrompt, affect, logic, input, false)
}

// SynthesizeWithPreservation re-runs synthesis with an added preservation
// block. Influence is derived from the original assessments as usual.
func (e *SynthesisEngine) SynthesizeWithPreservation(ctx context.Context, affect AffectAssessment, logic LogicAssessment, input, block string) (Synthesis, error) {
	prompt := synthesisPrompt + "\n\nPreservation requirement: " + block
	return e.run(ctx, "correction", prompt, affect, logic, input, true)
}

func (e *SynthesisEngine) run(ctx context.Context, component, prompt string, affect AffectAssessment, logic LogicAssessment, input string, corrected bool) (Synthesis, error) {
	start := time.Now()
	if err := validateInput(input); err != nil {
		return Synthesis{}, fmt.Errorf("%s: %w", component, err)
	}

	gen := generation{component: component, provider: e.provider, temperature: e.temperature, timeout: e.timeout}
	response, err := gen.respond(ctx, prompt, zyn.TransformInput{
		Text:  summarizeAssessments(affect, logic, input),
		Style: "A direct decision first, then the reasoning that reconciles both perspectives.",
	})
	if err != nil {
		return Synthesis{}, e.fail(ctx, component, start, err)
	}

	s := deriveSynthesis(affect, logic, response)
	s.Corrected = corrected
	if err := s.Validate(); err != nil {
		return Synthesis{}, e.fail(ctx, component, start, err)
	}

	capitan.Emit(ctx, SynthesisCompleted,
		FieldComponent.Field(component),
		FieldValonInfluence.Field(float32(s.ValonInfluence)),
		FieldConflictCount.Field(len(s.Conflicts)),
		FieldDuration.Field(time.Since(start)),
	)
	return s, nil
}

func (e *SynthesisEngine) fail(ctx context.Context, component string, start time.Time, err error) error {
	capitan.Error(ctx, SynthesisFailed,
		FieldComponent.Field(component),
		FieldDuration.Field(time.Since(start)),
		FieldError.Field(err),
	)
	return fmt.Errorf("%s: %w", component, err)
}

// summarizeAssessments renders both assessments and the input as prompt text.
func summarizeAssessments(affect AffectAssessment, logic LogicAssessment, input string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Message:\n%s\n\n", input)

	b.WriteString("Value reading:\n")
	fmt.Fprintf(&b, "  emotion: %s, urgency: %.2f, weight: %.2f\n", affect.PrimaryEmotion, affect.MoralUrgency, affect.Weight)
	if len(affect.ActivatedPrinciples) > 0 {
		names := make([]string, len(affect.ActivatedPrinciples))
		for i, p := range affect.ActivatedPrinciples {
			names[i] = string(p)
		}
		fmt.Fprintf(&b, "  principles: %s\n", strings.Join(names, ", "))
	}
	for _, c := range affect.Concerns {
		fmt.Fprintf(&b, "  concern: %s\n", c)
	}
	fmt.Fprintf(&b, "  guidance: %s\n\n", affect.Guidance)

	b.WriteString("Reasoning analysis:\n")
	fmt.Fprintf(&b, "  approach: %s, domain: %s, complexity: %s\n", logic.ReasoningFramework, logic.TechnicalDomain, logic.ComplexityLevel)
	fmt.Fprintf(&b, "  rigor: %.2f, confidence: %.2f\n", logic.Rigor, logic.Confidence)
	for i, s := range logic.ReasoningSteps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	for _, in := range logic.Insights {
		fmt.Fprintf(&b, "  insight: %s\n", in)
	}
	return b.String()
}
