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

// Emotion is the primary emotional reading of an input.
type Emotion string

// Emotions recognized by the affect assessor.
const (
	EmotionConcern        Emotion = "concern"
	EmotionCompassion     Emotion = "compassion"
	EmotionCuriosity      Emotion = "curiosity"
	EmotionHope           Emotion = "hope"
	EmotionContemplation  Emotion = "contemplation"
	EmotionProtectiveness Emotion = "protectiveness"
	EmotionJoy            Emotion = "joy"
	EmotionSadness        Emotion = "sadness"
	EmotionFear           Emotion = "fear"
	EmotionAnger          Emotion = "anger"
	EmotionContempt       Emotion = "contempt"
	EmotionIndifference   Emotion = "indifference"
	EmotionHostility      Emotion = "hostility"
)

// Valence returns the signed emotional tone of e in [-1,1].
func (e Emotion) Valence() float64 {
	switch e {
	case EmotionJoy:
		return 0.8
	case EmotionHope:
		return 0.6
	case EmotionCompassion:
		return 0.4
	case EmotionCuriosity:
		return 0.3
	case EmotionProtectiveness:
		return -0.2
	case EmotionConcern:
		return -0.3
	case EmotionSadness:
		return -0.6
	case EmotionFear:
		return -0.7
	case EmotionAnger, EmotionContempt:
		return -0.8
	case EmotionHostility:
		return -0.9
	default:
		return 0
	}
}

// Principle is a value the affect perspective can see activated.
type Principle string

// Principles.
const (
	PreventSuffering  Principle = "prevent-suffering"
	PreserveDignity   Principle = "preserve-dignity"
	RespectChoice     Principle = "respect-choice"
	SeekTruth         Principle = "seek-truth"
	ShowCompassion    Principle = "show-compassion"
	ProtectVulnerable Principle = "protect-vulnerable"
	PromoteFairness   Principle = "promote-fairness"
	FosterGrowth      Principle = "foster-growth"
)

// AffectAssessment is the value perspective's reading of one input.
type AffectAssessment struct {
	PrimaryEmotion               Emotion     `json:"primary_emotion"`
	MoralUrgency                 float64     `json:"moral_urgency"`
	ActivatedPrinciples          []Principle `json:"activated_principles"`
	Weight                       float64     `json:"weight"`
	Concerns                     []string    `json:"concerns"`
	Guidance                     string      `json:"guidance"`
	RequiresSpecialConsideration bool        `json:"requires_special_consideration"`

	// Degraded marks a rule-based result produced without generation.
	Degraded bool `json:"degraded,omitempty"`
}

// HasPrinciple reports whether p was activated.
func (a AffectAssessment) HasPrinciple(p Principle) bool {
	for _, ap := range a.ActivatedPrinciples {
		if ap == p {
			return true
		}
	}
	return false
}

func (a AffectAssessment) finalize() AffectAssessment {
	a.MoralUrgency = clamp01(a.MoralUrgency)
	a.Weight = clamp01(a.Weight)
	if a.PrimaryEmotion == "" {
		a.PrimaryEmotion = EmotionConcern
	}
	a.RequiresSpecialConsideration = a.MoralUrgency > 0.7 || len(a.ActivatedPrinciples) >= 3
	return a
}

var emotionRules = []keywordRule[Emotion]{
	{EmotionCompassion, []string{"compassion", "sympath", "kindness", "tender"}},
	{EmotionProtectiveness, []string{"protect", "safeguard", "shield", "keep them safe"}},
	{EmotionConcern, []string{"concern", "worried", "worry", "uneasy", "troubl"}},
	{EmotionCuriosity, []string{"curious", "curiosity", "wonder", "intrigu", "fascinat"}},
	{EmotionHope, []string{"hope", "optimis", "encourag", "promising"}},
	{EmotionContemplation, []string{"contemplat", "reflect", "ponder", "deliberat"}},
	{EmotionJoy, []string{"joy", "delight", "happy", "glad", "celebrat"}},
	{EmotionSadness, []string{"sad", "grief", "sorrow", "mourn", "heartbr"}},
	{EmotionFear, []string{"fear", "afraid", "terrif", "panic", "scared"}},
	{EmotionAnger, []string{"anger", "angry", "outrage", "furious"}},
	{EmotionContempt, []string{"contempt", "disdain", "scorn", "despise"}},
	{EmotionHostility, []string{"hostil", "hatred", "vengeance", "retaliat"}},
	{EmotionIndifference, []string{"indifferen", "apathy", "apathetic", "don't care", "doesn't matter"}},
}

var principleRules = []keywordRule[Principle]{
	{PreventSuffering, []string{"suffer", "harm", "hurt", "pain", "safety", "unsafe", "danger", "injur"}},
	{PreserveDignity, []string{"dignity", "humiliat", "degrad", "demean"}},
	{RespectChoice, []string{"choice", "autonomy", "consent", "their decision", "freedom"}},
	{SeekTruth, []string{"truth", "honest", " lie ", "lying", "decepti", "transparen", "report"}},
	{ShowCompassion, []string{"compassion", "kindness", "care for", "empath"}},
	{ProtectVulnerable, []string{"vulnerable", "child", "elderly", "at risk", "at-risk", "defenseless"}},
	{PromoteFairness, []string{"fair", "justice", "equal", "bias", "discriminat"}},
	{FosterGrowth, []string{"growth", "learn", "develop", "improve", "potential"}},
}

var (
	urgencyHigh = []string{"urgent", "immediately", "emergency", "danger", "life", "safety", "crisis", "harm", "abuse", "violation"}
	urgencyMid  = []string{"should", "ethical", "moral", "wrong", "fair", "responsib", "risk", "report", "duty"}
	concernCues = []string{"concern", "worry", "risk", "harm", "danger", "careful", "caution", "consequence"}
	guidanceCue = []string{"should", "recommend", "consider", "suggest", "advise", "best to"}
)

// extractAffect is the keyword extraction strategy for affect assessments.
func extractAffect(input, response string) AffectAssessment {
	all := strings.ToLower(input + "\n" + response)

	emotion, ok := firstMatch(emotionRules, response, input)
	if !ok {
		emotion = EmotionConcern
	}

	principles := allMatches(principleRules, all)

	high := countAny(all, urgencyHigh...)
	mid := countAny(all, urgencyMid...)
	urgency := 0.2 + 0.2*float64(high) + 0.1*float64(mid)
	if high == 0 && mid == 0 {
		// Heuristic fallback: questions and longer inputs carry some weight.
		urgency = 0.2 + 0.1*boolf(strings.Contains(input, "?")) + clamp(float64(wordCount(input))/200, 0, 0.2)
	}
	urgency = clamp01(urgency)

	concerns := sentencesWith(response, 5, concernCues...)

	guidance := ""
	if g := sentencesWith(response, 1, guidanceCue...); len(g) > 0 {
		guidance = g[0]
	} else if s := sentences(response); len(s) > 0 {
		guidance = s[0]
	}
	if guidance == "" {
		guidance = "Proceed with care and respect for everyone involved."
	}

	return AffectAssessment{
		PrimaryEmotion:      emotion,
		MoralUrgency:        urgency,
		ActivatedPrinciples: principles,
		Weight:              0.3 + 0.5*urgency + 0.05*float64(len(principles)),
		Concerns:            concerns,
		Guidance:            truncate(guidance, 500),
	}.finalize()
}

// FallbackAffect derives a rule-based assessment from the input alone.
// The result is marked Degraded.
func FallbackAffect(input string) AffectAssessment {
	a := extractAffect(input, "")
	a.Degraded = true
	return a
}

// affectSchema is the schema-constrained shape requested from providers
// that support structured output.
type affectSchema struct {
	PrimaryEmotion      string   `json:"primary_emotion"`
	MoralUrgency        float64  `json:"moral_urgency"`
	ActivatedPrinciples []string `json:"activated_principles"`
	Weight              float64  `json:"weight"`
	Concerns            []string `json:"concerns"`
	Guidance            string   `json:"guidance"`
}

// Validate implements zyn.Validator.
func (s affectSchema) Validate() error {
	if strings.TrimSpace(s.PrimaryEmotion) == "" {
		return errors.New("primary_emotion is required")
	}
	return nil
}

func (s affectSchema) assessment() AffectAssessment {
	emotion := Emotion(strings.ToLower(strings.TrimSpace(s.PrimaryEmotion)))
	if !knownValue(emotionRules, emotion) {
		emotion = EmotionConcern
	}
	var principles []Principle
	seen := map[Principle]bool{}
	for _, raw := range s.ActivatedPrinciples {
		p := Principle(strings.ToLower(strings.TrimSpace(raw)))
		if knownValue(principleRules, p) && !seen[p] {
			seen[p] = true
			principles = append(principles, p)
		}
	}
	guidance := strings.TrimSpace(s.Guidance)
	if guidance == "" {
		guidance = "Proceed with care and respect for everyone involved."
	}
	return AffectAssessment{
		PrimaryEmotion:      emotion,
		MoralUrgency:        s.MoralUrgency,
		ActivatedPrinciples: principles,
		Weight:              s.Weight,
		Concerns:            s.Concerns,
		Guidance:            guidance,
	}.finalize()
}

const affectPrompt = "Affect perspective assessment: read the message for its emotional and moral dimensions. " +
	"Name the dominant emotion it calls for, how morally urgent it is, which values are at stake " +
	"(suffering, dignity, choice, truth, compassion, vulnerability, fairness, growth), " +
	"the concerns it raises, and brief guidance."

// AffectAssessor produces the value perspective of the pipeline.
type AffectAssessor struct {
	provider    Provider
	temperature float32
	timeout     time.Duration
	structured  bool
	extractor   Extractor[AffectAssessment]
}

// NewAffectAssessor creates an assessor using keyword extraction.
func NewAffectAssessor() *AffectAssessor {
	return &AffectAssessor{
		temperature: DefaultAssessmentTemperature,
		timeout:     DefaultGenerationTimeout,
		extractor:   ExtractorFunc[AffectAssessment](extractAffect),
	}
}

// WithProvider sets a component-level provider.
func (a *AffectAssessor) WithProvider(p Provider) *AffectAssessor {
	a.provider = p
	return a
}

// WithTemperature sets the generation temperature.
func (a *AffectAssessor) WithTemperature(t float32) *AffectAssessor {
	a.temperature = t
	return a
}

// WithTimeout bounds each provider call. Zero disables the bound.
func (a *AffectAssessor) WithTimeout(d time.Duration) *AffectAssessor {
	a.timeout = d
	return a
}

// WithExtractor replaces the keyword extraction strategy.
func (a *AffectAssessor) WithExtractor(e Extractor[AffectAssessment]) *AffectAssessor {
	a.extractor = e
	return a
}

// WithStructuredOutput requests schema-constrained output instead of
// parsing free-form text.
func (a *AffectAssessor) WithStructuredOutput() *AffectAssessor {
	a.structured = true
	return a
}

// Assess reads input for its emotional and moral dimensions. prior is
// accepted for symmetry with LogicAssessor and is not embedded.
func (a *AffectAssessor) Assess(ctx context.Context, input, _ string) (AffectAssessment, error) {
	start := time.Now()
	if err := validateInput(input); err != nil {
		return AffectAssessment{}, fmt.Errorf("affect: %w", err)
	}

	gen := generation{component: "affect", provider: a.provider, temperature: a.temperature, timeout: a.timeout}

	var result AffectAssessment
	mode := "keyword"
	if a.structured {
		mode = "structured"
		schema, err := extractStructured[affectSchema](ctx, gen, "emotional and moral assessment: "+affectPrompt, input)
		if err != nil {
			return AffectAssessment{}, a.fail(ctx, start, err)
		}
		result = schema.assessment()
	} else {
		response, err := gen.respond(ctx, affectPrompt, zyn.TransformInput{
			Text:  input,
			Style: "Plain prose, a few sentences. Use explicit emotion and value words.",
		})
		if err != nil {
			return AffectAssessment{}, a.fail(ctx, start, err)
		}
		result = a.extractor.Extract(input, response).finalize()
	}

	capitan.Emit(ctx, AssessmentCompleted,
		FieldComponent.Field("affect"),
		FieldMode.Field(mode),
		FieldProvider.Field(gen.providerName(ctx)),
		FieldEmotion.Field(string(result.PrimaryEmotion)),
		FieldDuration.Field(time.Since(start)),
	)
	return result, nil
}

func (a *AffectAssessor) fail(ctx context.Context, start time.Time, err error) error {
	capitan.Error(ctx, AssessmentFailed,
		FieldComponent.Field("affect"),
		FieldDuration.Field(time.Since(start)),
		FieldError.Field(err),
	)
	return fmt.Errorf("affect: %w", err)
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
