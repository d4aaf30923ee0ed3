package syntra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Memory.FastCapacity != 1000 {
		t.Errorf("expected fast capacity 1000, got %d", cfg.Memory.FastCapacity)
	}
	if cfg.Rehearsal.Interval != time.Hour {
		t.Errorf("expected hourly rehearsal, got %v", cfg.Rehearsal.Interval)
	}
	if cfg.Generation.SynthesisTemperature != DefaultSynthesisTemperature {
		t.Errorf("expected synthesis temperature %v, got %v", DefaultSynthesisTemperature, cfg.Generation.SynthesisTemperature)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "syntra.yaml")
	content := `
generation:
  structured_output: true
  timeout: 30s
memory:
  fast_capacity: 50
  decay_rate: 0.1
rehearsal:
  session_size: 5
baseline:
  principle_weights:
    prevent-suffering: 1.0
  expected_emotions: [concern]
  disallowed_emotions: [contempt]
  empathy: 0.5
  reasoning_markers: [because]
  min_reasoning_markers: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Generation.StructuredOutput {
		t.Error("expected structured output enabled")
	}
	if cfg.Generation.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Generation.Timeout)
	}
	if cfg.Memory.FastCapacity != 50 || cfg.Memory.DecayRate != 0.1 {
		t.Errorf("memory overrides not applied: %+v", cfg.Memory)
	}
	// Unset keys keep their defaults.
	if cfg.Memory.ConsolidationBatch != 100 {
		t.Errorf("expected default batch 100, got %d", cfg.Memory.ConsolidationBatch)
	}
	if cfg.Rehearsal.SessionSize != 5 || cfg.Rehearsal.Variations != 2 {
		t.Errorf("rehearsal merge wrong: %+v", cfg.Rehearsal)
	}
	if cfg.Baseline == nil || cfg.Baseline.PrincipleWeights[PreventSuffering] != 1.0 {
		t.Errorf("expected inline baseline, got %+v", cfg.Baseline)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfigValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory.FastCapacity = 0
	cfg.Memory.EmotionalResistance = 2
	cfg.Rehearsal.SessionSize = -1
	cfg.Generation.RenderTemperature = 3

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"fast_capacity", "emotional_resistance", "session_size", "render_temperature"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}
}
