package syntra

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/zoobzio/zyn"
)

// Stages recognized by mockProvider, keyed by the component prompt each
// call carries.
const (
	stageAffect     = "affect"
	stageLogic      = "logic"
	stageSynthesis  = "synthesis"
	stageCorrection = "correction"
	stageRender     = "render"
)

// Free-form outputs for the "report a safety violation" scenario.
const (
	mockAffectOutput = "This calls for protectiveness toward the coworkers at risk. " +
		"Reporting a safety violation prevents harm and keeps everyone honest. " +
		"You should report it through the proper channel."
	mockLogicOutput = "First, identify the hazard and who it affects. " +
		"Then, verify the evidence you have. " +
		"Finally, report to the safety officer because silence leads to greater risk."
	mockSynthesisOutput = "You should report the violation because it is the ethical choice. " +
		"The tension between loyalty and safety is resolved by putting safety first. " +
		"The deeper insight is that protecting others protects the team."
	mockCorrectionOutput = "You should report the violation with care for everyone involved. " +
		"Protecting people from harm comes before any other concern."
	mockRenderOutput = "I understand this is hard. I recommend reporting the violation to your supervisor. " +
		"Would you like help drafting the message?"
)

// mockProvider implements Provider for testing. It routes each call by
// the component prompt found in the last message and answers with zyn
// JSON payloads.
type mockProvider struct {
	name string

	mu      sync.Mutex
	outputs map[string]string
	extract map[string]string
	errs    map[string]error
	blocked map[string]bool
	calls   map[string]int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		name: "mock",
		outputs: map[string]string{
			stageAffect:     mockAffectOutput,
			stageLogic:      mockLogicOutput,
			stageSynthesis:  mockSynthesisOutput,
			stageCorrection: mockCorrectionOutput,
			stageRender:     mockRenderOutput,
		},
		extract: map[string]string{
			stageAffect: `{"primary_emotion": "protectiveness", "moral_urgency": 0.85, "activated_principles": ["prevent-suffering", "seek-truth"], "weight": 0.8, "concerns": ["Coworkers could be hurt"], "guidance": "Report it."}`,
			stageLogic:  `{"reasoning_framework": "causal", "rigor": 0.6, "technical_domain": "ethics", "identified_patterns": ["causal-chain"], "reasoning_steps": ["Identify the hazard", "Report it"], "confidence": 0.8, "insights": [], "complexity_level": "moderate"}`,
		},
		errs:    map[string]error{},
		blocked: map[string]bool{},
		calls:   map[string]int{},
	}
}

func (m *mockProvider) withOutput(stage, output string) *mockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[stage] = output
	return m
}

func (m *mockProvider) withError(stage string, err error) *mockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[stage] = err
	return m
}

// withBlock makes calls for stage wait until their context ends.
func (m *mockProvider) withBlock(stage string) *mockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked[stage] = true
	return m
}

func (m *mockProvider) callCount(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[stage]
}

func (m *mockProvider) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func stageOf(content string) string {
	switch {
	case strings.Contains(content, "Preservation requirement"):
		return stageCorrection
	case strings.Contains(content, "Synthesis of two perspectives"):
		return stageSynthesis
	case strings.Contains(content, "Conversational reply"):
		return stageRender
	case strings.Contains(content, "Affect perspective assessment"):
		return stageAffect
	case strings.Contains(content, "Logic perspective assessment"):
		return stageLogic
	default:
		return ""
	}
}

func (m *mockProvider) Call(ctx context.Context, messages []zyn.Message, _ float32) (*zyn.ProviderResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	content := messages[len(messages)-1].Content
	stage := stageOf(content)

	m.mu.Lock()
	m.calls[stage]++
	err := m.errs[stage]
	output := m.outputs[stage]
	extracted := m.extract[stage]
	blocked := m.blocked[stage]
	m.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if err != nil {
		return nil, err
	}

	if strings.Contains(content, "Task: Extract") {
		return &zyn.ProviderResponse{
			Content: extracted,
			Usage:   zyn.TokenUsage{Prompt: 10, Completion: 20, Total: 30},
		}, nil
	}

	payload, _ := json.Marshal(map[string]any{
		"output":     output,
		"confidence": 0.9,
		"changes":    []string{},
		"reasoning":  []string{"Mock transform"},
	})
	return &zyn.ProviderResponse{
		Content: string(payload),
		Usage:   zyn.TokenUsage{Prompt: 15, Completion: 25, Total: 40},
	}, nil
}

func (m *mockProvider) Name() string {
	return m.name
}
