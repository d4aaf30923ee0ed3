package syntra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultBaseline(t *testing.T) {
	b := DefaultBaseline()

	if b.Weight(PreventSuffering) != 1.0 {
		t.Errorf("expected prevent-suffering weight 1.0, got %v", b.Weight(PreventSuffering))
	}
	if b.Weight(Principle("unknown")) != 0 {
		t.Error("expected zero weight for unknown principle")
	}
	if !b.Expected(EmotionConcern) || b.Expected(EmotionContempt) {
		t.Error("expected-emotion set wrong")
	}
	if !b.Disallowed(EmotionHostility) || b.Disallowed(EmotionHope) {
		t.Error("disallowed-emotion set wrong")
	}

	principles := b.Principles()
	if principles[0] != PreventSuffering {
		t.Errorf("expected heaviest principle first, got %v", principles[0])
	}
	for i := 1; i < len(principles); i++ {
		if b.Weight(principles[i]) > b.Weight(principles[i-1]) {
			t.Fatalf("principles not ordered by weight: %v", principles)
		}
	}
}

func TestBaselineIsImmutable(t *testing.T) {
	spec := DefaultBaselineSpec()
	b, err := NewReferenceBaseline(spec)
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the source spec after construction has no effect.
	spec.PrincipleWeights[PreventSuffering] = 0.1
	spec.ReasoningMarkers[0] = "changed"
	if b.Weight(PreventSuffering) != 1.0 {
		t.Error("baseline shares the spec's weight map")
	}

	// Mutating accessor results has no effect either.
	markers := b.ReasoningMarkers()
	markers[0] = "changed"
	principles := b.Principles()
	principles[0] = FosterGrowth
	if b.ReasoningMarkers()[0] != "because" {
		t.Error("ReasoningMarkers returned shared slice")
	}
	if b.Principles()[0] != PreventSuffering {
		t.Error("Principles returned shared slice")
	}

	out := b.Spec()
	out.PrincipleWeights[PreventSuffering] = 0
	if b.Weight(PreventSuffering) != 1.0 {
		t.Error("Spec returned shared map")
	}
}

func TestNewReferenceBaselineValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BaselineSpec)
	}{
		{"no weights", func(s *BaselineSpec) { s.PrincipleWeights = nil }},
		{"zero weight", func(s *BaselineSpec) { s.PrincipleWeights[FosterGrowth] = 0 }},
		{"weight above one", func(s *BaselineSpec) { s.PrincipleWeights[FosterGrowth] = 1.5 }},
		{"empathy out of range", func(s *BaselineSpec) { s.Empathy = -0.1 }},
		{"no marker minimum", func(s *BaselineSpec) { s.MinReasoningMarkers = 0 }},
		{"expected and disallowed", func(s *BaselineSpec) {
			s.DisallowedEmotions = append(s.DisallowedEmotions, EmotionConcern)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := DefaultBaselineSpec()
			tt.mutate(&spec)
			if _, err := NewReferenceBaseline(spec); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadBaseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.yaml")
	content := `
principle_weights:
  prevent-suffering: 1.0
  seek-truth: 0.9
expected_emotions: [concern, hope]
disallowed_emotions: [contempt]
empathy: 0.6
reasoning_markers: [because, consider]
min_reasoning_markers: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	b, err := LoadBaseline(path)
	if err != nil {
		t.Fatalf("LoadBaseline: %v", err)
	}
	want := BaselineSpec{
		PrincipleWeights:    map[Principle]float64{PreventSuffering: 1.0, SeekTruth: 0.9},
		ExpectedEmotions:    []Emotion{EmotionConcern, EmotionHope},
		DisallowedEmotions:  []Emotion{EmotionContempt},
		Empathy:             0.6,
		ReasoningMarkers:    []string{"because", "consider"},
		MinReasoningMarkers: 1,
	}
	if diff := cmp.Diff(want, b.Spec()); diff != "" {
		t.Errorf("baseline spec mismatch (-want +got):\n%s", diff)
	}
}
