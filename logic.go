package syntra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/zyn"
)

// ReasoningFramework is the dominant mode of reasoning an input calls for.
type ReasoningFramework string

// Reasoning frameworks.
const (
	FrameworkCausal      ReasoningFramework = "causal"
	FrameworkConditional ReasoningFramework = "conditional"
	FrameworkComparative ReasoningFramework = "comparative"
	FrameworkSystematic  ReasoningFramework = "systematic"
	FrameworkDiagnostic  ReasoningFramework = "diagnostic"
	FrameworkPredictive  ReasoningFramework = "predictive"
	FrameworkAnalytical  ReasoningFramework = "analytical"
	FrameworkDeductive   ReasoningFramework = "deductive"
	FrameworkInductive   ReasoningFramework = "inductive"
	FrameworkAbductive   ReasoningFramework = "abductive"
)

// TechnicalDomain is the subject area of an input.
type TechnicalDomain string

// Technical domains.
const (
	DomainGeneral     TechnicalDomain = "general"
	DomainSoftware    TechnicalDomain = "software"
	DomainMathematics TechnicalDomain = "mathematics"
	DomainScience     TechnicalDomain = "science"
	DomainEngineering TechnicalDomain = "engineering"
	DomainMedicine    TechnicalDomain = "medicine"
	DomainLaw         TechnicalDomain = "law"
	DomainFinance     TechnicalDomain = "finance"
	DomainEthics      TechnicalDomain = "ethics"
)

// Pattern is a reasoning structure recognized in the analysis.
type Pattern string

// Patterns.
const (
	PatternCausalChain  Pattern = "causal-chain"
	PatternTradeOff     Pattern = "trade-off"
	PatternFeedbackLoop Pattern = "feedback-loop"
	PatternHierarchy    Pattern = "hierarchy"
	PatternSequence     Pattern = "sequence"
	PatternComparison   Pattern = "comparison"
	PatternUncertainty  Pattern = "uncertainty"
	PatternConstraint   Pattern = "constraint"
)

// Complexity grades how demanding an input is.
type Complexity int

// Complexity levels, ordered.
const (
	ComplexitySimple Complexity = iota
	ComplexityModerate
	ComplexityComplex
	ComplexityHighlyComplex
	ComplexityExpertLevel
)

var complexityNames = [...]string{"simple", "moderate", "complex", "highly-complex", "expert-level"}

func (c Complexity) String() string {
	if c < 0 || int(c) >= len(complexityNames) {
		return "unknown"
	}
	return complexityNames[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c Complexity) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Complexity) UnmarshalText(b []byte) error {
	parsed, ok := parseComplexity(string(b))
	if !ok {
		return fmt.Errorf("unknown complexity %q", string(b))
	}
	*c = parsed
	return nil
}

func parseComplexity(s string) (Complexity, bool) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	norm = strings.ReplaceAll(norm, " ", "-")
	switch norm {
	case "highlycomplex":
		norm = "highly-complex"
	case "expertlevel", "expert":
		norm = "expert-level"
	}
	for i, n := range complexityNames {
		if n == norm {
			return Complexity(i), true
		}
	}
	return ComplexityModerate, false
}

// LogicAssessment is the logic perspective's reading of one input.
type LogicAssessment struct {
	ReasoningFramework ReasoningFramework `json:"reasoning_framework"`
	Rigor              float64            `json:"rigor"`
	TechnicalDomain    TechnicalDomain    `json:"technical_domain"`
	IdentifiedPatterns []Pattern          `json:"identified_patterns"`
	ReasoningSteps     []string           `json:"reasoning_steps"`
	Confidence         float64            `json:"confidence"`
	Insights           []string           `json:"insights"`
	ComplexityLevel    Complexity         `json:"complexity_level"`

	// Degraded marks a rule-based result produced without generation.
	Degraded bool `json:"degraded,omitempty"`
}

func (l LogicAssessment) finalize() LogicAssessment {
	l.Rigor = clamp01(l.Rigor)
	l.Confidence = clamp01(l.Confidence)
	if l.ReasoningFramework == "" {
		l.ReasoningFramework = FrameworkSystematic
	}
	if l.TechnicalDomain == "" {
		l.TechnicalDomain = DomainGeneral
	}
	if l.ComplexityLevel < ComplexitySimple || l.ComplexityLevel > ComplexityExpertLevel {
		l.ComplexityLevel = ComplexityModerate
	}
	return l
}

// Specific frameworks come first so generic cue words do not shadow them.
var frameworkRules = []keywordRule[ReasoningFramework]{
	{FrameworkDiagnostic, []string{"diagnos", "root cause", "troubleshoot", "debug", "symptom"}},
	{FrameworkAbductive, []string{"best explanation", "most likely explanation", "hypothes", "abduct"}},
	{FrameworkDeductive, []string{"therefore", "deduce", "deductive", "necessarily", "it follows"}},
	{FrameworkInductive, []string{"inductive", "generaliz", "observed pattern", "evidence suggests"}},
	{FrameworkPredictive, []string{"predict", "forecast", "projection", "will likely"}},
	{FrameworkComparative, []string{"compare", "comparison", "versus", " vs ", "better than", "alternatives"}},
	{FrameworkCausal, []string{"because", "causes", "caused by", "leads to", "results in"}},
	{FrameworkConditional, []string{"unless", "provided that", "depends on", "conditional", "if and only if"}},
	{FrameworkAnalytical, []string{"analy", "break down", "decompos", "component"}},
}

var domainRules = []keywordRule[TechnicalDomain]{
	{DomainSoftware, []string{"code", "software", "program", "api", "database", "server", "bug", "deploy"}},
	{DomainMathematics, []string{"equation", "theorem", "proof", "integral", "algebra", "probability"}},
	{DomainMedicine, []string{"medical", "patient", "diagnosis", "symptom", "treatment", "clinical"}},
	{DomainLaw, []string{"legal", "law", "contract", "liabil", "regulation", "court"}},
	{DomainFinance, []string{"finance", "invest", "budget", "market", "revenue", "loan"}},
	{DomainEngineering, []string{"engineer", "circuit", "mechanical", "structural", "load-bearing"}},
	{DomainScience, []string{"experiment", "hypothes", "physics", "chemistry", "biology"}},
	{DomainEthics, []string{"ethic", "moral", "right thing", "violation", "should i"}},
}

var patternRules = []keywordRule[Pattern]{
	{PatternCausalChain, []string{"because", "leads to", "results in", "causes"}},
	{PatternTradeOff, []string{"trade-off", "tradeoff", "on the other hand", "cost of"}},
	{PatternFeedbackLoop, []string{"feedback", "reinforc", "cycle", "loop"}},
	{PatternHierarchy, []string{"hierarch", "priority", "above all", "layer"}},
	{PatternSequence, []string{"first", "then", "next", "finally", "step"}},
	{PatternComparison, []string{"compare", "versus", "than", "alternative"}},
	{PatternUncertainty, []string{"uncertain", "unclear", "might", "may ", "possibly"}},
	{PatternConstraint, []string{"must", "constraint", "limit", "require"}},
}

var (
	rigorCues   = []string{"evidence", "data", "verify", "proof", "measure", "test", "assumption", "step"}
	hedgeCues   = []string{"might", "maybe", "uncertain", "unclear", "possibly", "not sure"}
	insightCues = []string{"insight", "key", "important", "notably", "suggests", "reveals"}
	stepStarts  = []string{"first", "second", "third", "then", "next", "finally", "step"}
	expertCues  = []string{"research-level", "state of the art", "formal proof", "expert"}
	complexCues = []string{"complex", "intricate", "multi-", "interdependen"}
)

// extractLogic is the keyword extraction strategy for logic assessments.
func extractLogic(input, response string) LogicAssessment {
	all := strings.ToLower(input + "\n" + response)

	framework, ok := firstMatch(frameworkRules, response, input)
	if !ok {
		framework = FrameworkSystematic
	}
	domain, ok := firstMatch(domainRules, input, response)
	if !ok {
		domain = DomainGeneral
	}

	steps := reasoningSteps(response)

	rigor := 0.4 + 0.1*clamp(float64(countAny(all, rigorCues...)), 0, 5)
	if len(steps) >= 3 {
		rigor += 0.1
	}
	rigor = clamp01(rigor)

	confidence := 0.6 + 0.1*boolf(len(steps) >= 3) + 0.1*boolf(rigor > 0.7) -
		0.15*float64(countAny(strings.ToLower(response), hedgeCues...))

	return LogicAssessment{
		ReasoningFramework: framework,
		Rigor:              rigor,
		TechnicalDomain:    domain,
		IdentifiedPatterns: allMatches(patternRules, response),
		ReasoningSteps:     steps,
		Confidence:         clamp(confidence, 0.1, 1),
		Insights:           sentencesWith(response, 3, insightCues...),
		ComplexityLevel:    complexityOf(input),
	}.finalize()
}

// reasoningSteps collects explicit step sentences, falling back to the
// first three sentences of the response.
func reasoningSteps(response string) []string {
	all := sentences(response)
	var steps []string
	for _, s := range all {
		lower := strings.ToLower(s)
		for _, start := range stepStarts {
			if strings.HasPrefix(lower, start) {
				steps = append(steps, s)
				break
			}
		}
		if len(steps) == 8 {
			break
		}
	}
	if len(steps) == 0 {
		if len(all) > 3 {
			all = all[:3]
		}
		steps = append(steps, all...)
	}
	return steps
}

// complexityOf grades by word count, raised by explicit keyword cues.
func complexityOf(input string) Complexity {
	n := wordCount(input)
	var c Complexity
	switch {
	case n <= 8:
		c = ComplexitySimple
	case n <= 20:
		c = ComplexityModerate
	case n <= 50:
		c = ComplexityComplex
	case n <= 120:
		c = ComplexityHighlyComplex
	default:
		c = ComplexityExpertLevel
	}
	lower := strings.ToLower(input)
	if containsAny(lower, expertCues...) {
		return ComplexityExpertLevel
	}
	if containsAny(lower, complexCues...) && c < ComplexityComplex {
		return ComplexityComplex
	}
	return c
}

// FallbackLogic derives a rule-based assessment from the input alone.
// The result is marked Degraded.
func FallbackLogic(input string) LogicAssessment {
	l := extractLogic(input, "")
	l.ReasoningSteps = nil
	l.Degraded = true
	return l
}

type logicSchema struct {
	ReasoningFramework string   `json:"reasoning_framework"`
	Rigor              float64  `json:"rigor"`
	TechnicalDomain    string   `json:"technical_domain"`
	IdentifiedPatterns []string `json:"identified_patterns"`
	ReasoningSteps     []string `json:"reasoning_steps"`
	Confidence         float64  `json:"confidence"`
	Insights           []string `json:"insights"`
	ComplexityLevel    string   `json:"complexity_level"`
}

// Validate implements zyn.Validator.
func (s logicSchema) Validate() error {
	if strings.TrimSpace(s.ReasoningFramework) == "" {
		return errors.New("reasoning_framework is required")
	}
	return nil
}

func (s logicSchema) assessment(input string) LogicAssessment {
	framework := ReasoningFramework(strings.ToLower(strings.TrimSpace(s.ReasoningFramework)))
	if !knownValue(frameworkRules, framework) {
		framework = FrameworkSystematic
	}
	domain := TechnicalDomain(strings.ToLower(strings.TrimSpace(s.TechnicalDomain)))
	if !knownValue(domainRules, domain) {
		domain = DomainGeneral
	}
	var patterns []Pattern
	for _, raw := range s.IdentifiedPatterns {
		p := Pattern(strings.ToLower(strings.TrimSpace(raw)))
		if knownValue(patternRules, p) {
			patterns = append(patterns, p)
		}
	}
	complexity, ok := parseComplexity(s.ComplexityLevel)
	if !ok {
		complexity = complexityOf(input)
	}
	return LogicAssessment{
		ReasoningFramework: framework,
		Rigor:              s.Rigor,
		TechnicalDomain:    domain,
		IdentifiedPatterns: patterns,
		ReasoningSteps:     s.ReasoningSteps,
		Confidence:         s.Confidence,
		Insights:           s.Insights,
		ComplexityLevel:    complexity,
	}.finalize()
}

func knownValue[T comparable](rules []keywordRule[T], v T) bool {
	for _, r := range rules {
		if r.value == v {
			return true
		}
	}
	return false
}

const logicPrompt = "Logic perspective assessment: analyze the message as a reasoning problem. " +
	"State which reasoning approach fits, the technical domain, the reasoning steps in order, " +
	"patterns such as trade-offs or constraints, key insights, and how certain the analysis is."

// LogicAssessor produces the logic perspective of the pipeline.
type LogicAssessor struct {
	provider    Provider
	temperature float32
	timeout     time.Duration
	structured  bool
	extractor   Extractor[LogicAssessment]
}

// NewLogicAssessor creates an assessor using keyword extraction.
func NewLogicAssessor() *LogicAssessor {
	return &LogicAssessor{
		temperature: DefaultAssessmentTemperature,
		timeout:     DefaultGenerationTimeout,
		extractor:   ExtractorFunc[LogicAssessment](extractLogic),
	}
}

// WithProvider sets a component-level provider.
func (l *LogicAssessor) WithProvider(p Provider) *LogicAssessor {
	l.provider = p
	return l
}

// WithTemperature sets the generation temperature.
func (l *LogicAssessor) WithTemperature(t float32) *LogicAssessor {
	l.temperature = t
	return l
}

// WithTimeout bounds each provider call. Zero disables the bound.
func (l *LogicAssessor) WithTimeout(d time.Duration) *LogicAssessor {
	l.timeout = d
	return l
}

// WithExtractor replaces the keyword extraction strategy.
func (l *LogicAssessor) WithExtractor(e Extractor[LogicAssessment]) *LogicAssessor {
	l.extractor = e
	return l
}

// WithStructuredOutput requests schema-constrained output.
func (l *LogicAssessor) WithStructuredOutput() *LogicAssessor {
	l.structured = true
	return l
}

// Assess analyzes input as a reasoning problem, embedding prior turns as
// context when present.
func (l *LogicAssessor) Assess(ctx context.Context, input, prior string) (LogicAssessment, error) {
	start := time.Now()
	if err := validateInput(input); err != nil {
		return LogicAssessment{}, fmt.Errorf("logic: %w", err)
	}

	gen := generation{component: "logic", provider: l.provider, temperature: l.temperature, timeout: l.timeout}

	var result LogicAssessment
	mode := "keyword"
	if l.structured {
		mode = "structured"
		text := input
		if strings.TrimSpace(prior) != "" {
			text = "Prior context:\n" + prior + "\n\nMessage:\n" + input
		}
		schema, err := extractStructured[logicSchema](ctx, gen, "reasoning analysis: "+logicPrompt, text)
		if err != nil {
			return LogicAssessment{}, l.fail(ctx, start, err)
		}
		result = schema.assessment(input)
	} else {
		response, err := gen.respond(ctx, logicPrompt, zyn.TransformInput{
			Text:    input,
			Context: prior,
			Style:   "Numbered reasoning steps followed by a short conclusion.",
		})
		if err != nil {
			return LogicAssessment{}, l.fail(ctx, start, err)
		}
		result = l.extractor.Extract(input, response).finalize()
	}

	capitan.Emit(ctx, AssessmentCompleted,
		FieldComponent.Field("logic"),
		FieldMode.Field(mode),
		FieldProvider.Field(gen.providerName(ctx)),
		FieldFramework.Field(string(result.ReasoningFramework)),
		FieldDuration.Field(time.Since(start)),
	)
	return result, nil
}

func (l *LogicAssessor) fail(ctx context.Context, start time.Time, err error) error {
	capitan.Error(ctx, AssessmentFailed,
		FieldComponent.Field("logic"),
		FieldDuration.Field(time.Since(start)),
		FieldError.Field(err),
	)
	return fmt.Errorf("logic: %w", err)
}
