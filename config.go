package syntra

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zoobzio/zyn"
	"gopkg.in/yaml.v3"
)

// Default configuration for syntra components.
// These can be overridden per-component using builder methods.
var (
	// DefaultAssessmentTemperature is used by the affect and logic assessors.
	DefaultAssessmentTemperature = zyn.DefaultTemperatureAnalytical

	// DefaultSynthesisTemperature is used for synthesis and correction.
	// Deterministic so repeated passes over the same input agree.
	DefaultSynthesisTemperature = zyn.DefaultTemperatureDeterministic

	// DefaultRenderTemperature is used by the conversational renderer.
	DefaultRenderTemperature = zyn.DefaultTemperatureCreative

	// DefaultGenerationTimeout bounds a single provider call. Zero disables it.
	DefaultGenerationTimeout = 60 * time.Second
)

// Config is the file-level configuration for a syntra process.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Memory     MemoryConfig     `yaml:"memory"`
	Rehearsal  RehearsalConfig  `yaml:"rehearsal"`

	// Baseline is an inline reference baseline. BaselinePath, when set,
	// takes precedence. With neither, DefaultBaseline is used.
	Baseline     *BaselineSpec `yaml:"baseline,omitempty"`
	BaselinePath string        `yaml:"baseline_path,omitempty"`
}

// GenerationConfig controls calls to the generation capability.
type GenerationConfig struct {
	AssessmentTemperature float32       `yaml:"assessment_temperature"`
	SynthesisTemperature  float32       `yaml:"synthesis_temperature"`
	RenderTemperature     float32       `yaml:"render_temperature"`
	Timeout               time.Duration `yaml:"timeout"`

	// StructuredOutput switches the assessors to schema-constrained
	// extraction instead of keyword parsing of free-form text.
	StructuredOutput bool `yaml:"structured_output"`

	// DegradedFallback substitutes rule-based assessments when the
	// capability is unavailable. Results are marked Degraded.
	DegradedFallback bool `yaml:"degraded_fallback"`
}

// MemoryConfig holds the dual-stream memory tunables.
type MemoryConfig struct {
	FastCapacity       int           `yaml:"fast_capacity"`
	ConsolidationBatch int           `yaml:"consolidation_batch"`
	StrengthThreshold  float64       `yaml:"strength_threshold"`
	AccessThreshold    int           `yaml:"access_threshold"`
	AgeThreshold       time.Duration `yaml:"age_threshold"`
	ValenceThreshold   float64       `yaml:"valence_threshold"`

	ConsolidationBoost float64 `yaml:"consolidation_boost"`
	ConsolidationDecay float64 `yaml:"consolidation_strength_factor"`

	DecayRate           float64 `yaml:"decay_rate"`
	EmotionalResistance float64 `yaml:"emotional_resistance"`
	SlowDecayFactor     float64 `yaml:"slow_decay_factor"`
	FastPruneThreshold  float64 `yaml:"fast_prune_threshold"`
	SlowPruneThreshold  float64 `yaml:"slow_prune_threshold"`

	RecencyWindow time.Duration `yaml:"recency_window"`
	MaxLinks      int           `yaml:"max_links"`
}

// RehearsalConfig holds the rehearsal engine tunables.
type RehearsalConfig struct {
	Interval     time.Duration `yaml:"interval"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SessionSize  int           `yaml:"session_size"`
	Attention    float64       `yaml:"attention"`
	Motivation   float64       `yaml:"motivation"`
	Variations   int           `yaml:"variations"`
}

// DefaultMemoryConfig returns the documented memory defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		FastCapacity:        1000,
		ConsolidationBatch:  100,
		StrengthThreshold:   0.8,
		AccessThreshold:     3,
		AgeThreshold:        24 * time.Hour,
		ValenceThreshold:    0.7,
		ConsolidationBoost:  0.3,
		ConsolidationDecay:  0.9,
		DecayRate:           0.05,
		EmotionalResistance: 0.7,
		SlowDecayFactor:     0.1,
		FastPruneThreshold:  0.05,
		SlowPruneThreshold:  0.025,
		RecencyWindow:       7 * 24 * time.Hour,
		MaxLinks:            8,
	}
}

// DefaultRehearsalConfig returns the documented rehearsal defaults.
func DefaultRehearsalConfig() RehearsalConfig {
	return RehearsalConfig{
		Interval:     time.Hour,
		PollInterval: 30 * time.Second,
		SessionSize:  20,
		Attention:    0.8,
		Motivation:   0.8,
		Variations:   2,
	}
}

// DefaultConfig returns a Config populated with package defaults.
func DefaultConfig() Config {
	return Config{
		Generation: GenerationConfig{
			AssessmentTemperature: DefaultAssessmentTemperature,
			SynthesisTemperature:  DefaultSynthesisTemperature,
			RenderTemperature:     DefaultRenderTemperature,
			Timeout:               DefaultGenerationTimeout,
		},
		Memory:    DefaultMemoryConfig(),
		Rehearsal: DefaultRehearsalConfig(),
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section and joins all problems found.
func (c Config) Validate() error {
	var errs []error
	if c.Generation.Timeout < 0 {
		errs = append(errs, errors.New("generation.timeout must not be negative"))
	}
	for name, t := range map[string]float32{
		"assessment_temperature": c.Generation.AssessmentTemperature,
		"synthesis_temperature":  c.Generation.SynthesisTemperature,
		"render_temperature":     c.Generation.RenderTemperature,
	} {
		if t < 0 || t > 2 {
			errs = append(errs, fmt.Errorf("generation.%s must be within [0,2], got %v", name, t))
		}
	}
	if err := c.Memory.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Rehearsal.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Baseline != nil {
		if _, err := NewReferenceBaseline(*c.Baseline); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks the memory tunables.
func (c MemoryConfig) Validate() error {
	var errs []error
	if c.FastCapacity <= 0 {
		errs = append(errs, errors.New("memory.fast_capacity must be positive"))
	}
	if c.ConsolidationBatch <= 0 {
		errs = append(errs, errors.New("memory.consolidation_batch must be positive"))
	}
	if c.DecayRate < 0 {
		errs = append(errs, errors.New("memory.decay_rate must not be negative"))
	}
	if c.EmotionalResistance < 0 || c.EmotionalResistance > 1 {
		errs = append(errs, errors.New("memory.emotional_resistance must be within [0,1]"))
	}
	if c.ConsolidationDecay <= 0 || c.ConsolidationDecay > 1 {
		errs = append(errs, errors.New("memory.consolidation_strength_factor must be within (0,1]"))
	}
	if c.FastPruneThreshold < 0 || c.SlowPruneThreshold < 0 {
		errs = append(errs, errors.New("memory prune thresholds must not be negative"))
	}
	if c.MaxLinks <= 0 {
		errs = append(errs, errors.New("memory.max_links must be positive"))
	}
	return errors.Join(errs...)
}

// Validate checks the rehearsal tunables.
func (c RehearsalConfig) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, errors.New("rehearsal.interval must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("rehearsal.poll_interval must be positive"))
	}
	if c.SessionSize <= 0 {
		errs = append(errs, errors.New("rehearsal.session_size must be positive"))
	}
	if c.Attention < 0 || c.Attention > 1 || c.Motivation < 0 || c.Motivation > 1 {
		errs = append(errs, errors.New("rehearsal attention and motivation must be within [0,1]"))
	}
	if c.Variations <= 0 {
		errs = append(errs, errors.New("rehearsal.variations must be positive"))
	}
	return errors.Join(errs...)
}
