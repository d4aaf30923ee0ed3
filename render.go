package syntra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/zyn"
)

// ConversationalResponse is the rendered reply with tone metadata.
type ConversationalResponse struct {
	Text                string   `json:"text"`
	Tone                string   `json:"tone"`
	Strategy            string   `json:"strategy"`
	Helpfulness         float64  `json:"helpfulness"`
	SuggestFollowUp     bool     `json:"suggest_follow_up"`
	Topics              []string `json:"topics"`
	RelationshipDynamic string   `json:"relationship_dynamic"`
}

// Renderer defaults.
const (
	DefaultTone         = "thoughtful"
	DefaultStrategy     = "inform"
	DefaultRelationship = "collaborative"
	DefaultHelpfulness  = 0.7
)

var toneRules = []keywordRule[string]{
	{"empathetic", []string{"i understand", "that sounds", "i'm sorry", "it's hard", "you feel"}},
	{"warm", []string{"glad", "happy to", "appreciate", "wonderful"}},
	{"cautious", []string{"careful", "caution", "be aware", "risk"}},
	{"direct", []string{"you should", "the answer is", "do this"}},
}

var strategyRules = []keywordRule[string]{
	{"guide", []string{"first,", "step 1", "next,", "then,"}},
	{"advise", []string{"recommend", "suggest", "you should", "consider"}},
	{"explore", []string{"what do you think", "have you considered", "would you"}},
}

const renderPrompt = "Conversational reply: turn the decision below into a natural reply to the " +
	"person who wrote the message. Be warm and clear, and stay faithful to the decision."

// Renderer turns a synthesis into a conversational reply.
type Renderer struct {
	provider    Provider
	temperature float32
	timeout     time.Duration
}

// NewRenderer creates a renderer with default settings.
func NewRenderer() *Renderer {
	return &Renderer{
		temperature: DefaultRenderTemperature,
		timeout:     DefaultGenerationTimeout,
	}
}

// WithProvider sets a component-level provider.
func (r *Renderer) WithProvider(p Provider) *Renderer {
	r.provider = p
	return r
}

// WithTemperature sets the generation temperature.
func (r *Renderer) WithTemperature(t float32) *Renderer {
	r.temperature = t
	return r
}

// WithTimeout bounds each provider call. Zero disables the bound.
func (r *Renderer) WithTimeout(d time.Duration) *Renderer {
	r.timeout = d
	return r
}

// Render produces the reply. Only provider failures are returned; every
// derived field falls back to a default.
func (r *Renderer) Render(ctx context.Context, s Synthesis, input, prior string) (ConversationalResponse, error) {
	start := time.Now()
	gen := generation{component: "render", provider: r.provider, temperature: r.temperature, timeout: r.timeout}

	text := fmt.Sprintf("Message:\n%s\n\nDecision:\n%s\n\nResolution:\n%s", input, s.Decision, s.ConflictResolution)
	response, err := gen.respond(ctx, renderPrompt, zyn.TransformInput{
		Text:    text,
		Context: prior,
		Style:   "Conversational, second person, no headings.",
	})
	if err != nil {
		return ConversationalResponse{}, r.fail(ctx, gen.providerName(ctx), start, err)
	}
	out := deriveResponse(s, input, response)

	capitan.Emit(ctx, RenderCompleted,
		FieldComponent.Field("render"),
		FieldProvider.Field(gen.providerName(ctx)),
		FieldTone.Field(out.Tone),
		FieldDuration.Field(time.Since(start)),
	)
	return out, nil
}

func (r *Renderer) fail(ctx context.Context, provider string, start time.Time, err error) error {
	capitan.Error(ctx, RenderFailed,
		FieldComponent.Field("render"),
		FieldProvider.Field(provider),
		FieldDuration.Field(time.Since(start)),
		FieldError.Field(err),
	)
	return fmt.Errorf("render: %w", err)
}

func deriveResponse(s Synthesis, input, response string) ConversationalResponse {
	text := strings.TrimSpace(response)
	if text == "" {
		text = s.Decision
	}
	lower := strings.ToLower(text)

	tone, ok := firstMatch(toneRules, text)
	if !ok {
		tone = DefaultTone
	}
	strategy, ok := firstMatch(strategyRules, text)
	if !ok {
		strategy = DefaultStrategy
	}

	helpfulness := DefaultHelpfulness
	if strategy == "advise" || strategy == "guide" {
		helpfulness += 0.1
	}
	if wordCount(text) >= 40 {
		helpfulness += 0.1
	}
	if wordCount(text) < 5 {
		helpfulness -= 0.2
	}

	relationship := DefaultRelationship
	switch {
	case s.ValonInfluence >= 0.65:
		relationship = "supportive"
	case s.ValonInfluence <= 0.45:
		relationship = "advisory"
	}

	topics := semanticTerms(input, 5)
	if len(topics) == 0 {
		topics = []string{"general"}
	}

	return ConversationalResponse{
		Text:                text,
		Tone:                tone,
		Strategy:            strategy,
		Helpfulness:         clamp01(helpfulness),
		SuggestFollowUp:     strings.Contains(text, "?") || containsAny(lower, "let me know", "feel free", "happy to help further"),
		Topics:              topics,
		RelationshipDynamic: relationship,
	}
}
