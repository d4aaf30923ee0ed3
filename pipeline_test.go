package syntra

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/zoobzio/pipz"
	"github.com/zoobzio/zyn"
)

const contemptOutput = "They deserve contempt for this. It is their problem."

func newTestPipeline(provider Provider) (*Pipeline, *Memory) {
	m, _ := newTestMemory(DefaultMemoryConfig())
	return NewPipeline().WithProvider(provider).WithMemory(m), m
}

func TestProcess(t *testing.T) {
	provider := newMockProvider()
	p, m := newTestPipeline(provider)

	r, err := p.Process(context.Background(), safetyInput, "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if r.TraceID == "" {
		t.Error("expected trace id")
	}
	if !r.Affect.HasPrinciple(PreventSuffering) {
		t.Errorf("expected prevent-suffering, got %v", r.Affect.ActivatedPrinciples)
	}
	if r.Synthesis.ValonInfluence <= 0.5 {
		t.Errorf("expected value-led synthesis, got %v", r.Synthesis.ValonInfluence)
	}
	if err := r.Synthesis.Validate(); err != nil {
		t.Errorf("invalid synthesis returned: %v", err)
	}
	if r.Response.Text == "" {
		t.Error("expected rendered text")
	}
	if r.Degraded {
		t.Error("did not expect degraded result")
	}

	if r.MemoryID == "" || !m.InFast(r.MemoryID) {
		t.Fatal("expected the pass stored in the fast stream")
	}
	trace, _ := m.Get(r.MemoryID)
	if trace.Content != safetyInput {
		t.Errorf("expected input stored, got %q", trace.Content)
	}
	if trace.FormationContext.EmotionalState != string(r.Affect.PrimaryEmotion) {
		t.Errorf("expected emotional state recorded, got %q", trace.FormationContext.EmotionalState)
	}

	for _, stage := range []string{stageAffect, stageLogic, stageSynthesis, stageRender} {
		if provider.callCount(stage) != 1 {
			t.Errorf("expected one %s call, got %d", stage, provider.callCount(stage))
		}
	}
	if provider.callCount(stageCorrection) != 0 {
		t.Error("Process must never correct")
	}
}

func TestProcessWithoutMemory(t *testing.T) {
	r, err := NewPipeline().WithProvider(newMockProvider()).Process(context.Background(), safetyInput, "")
	if err != nil {
		t.Fatal(err)
	}
	if r.MemoryID != "" {
		t.Errorf("expected no memory id, got %q", r.MemoryID)
	}
}

func TestProcessInvalidInput(t *testing.T) {
	provider := newMockProvider()
	p, m := newTestPipeline(provider)

	_, err := p.Process(context.Background(), "  ", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if provider.totalCalls() != 0 {
		t.Error("expected no provider calls")
	}
	if m.Statistics().FastCount != 0 {
		t.Error("failed pass must not store")
	}
}

func TestProcessWithDriftMonitoringAligned(t *testing.T) {
	provider := newMockProvider()
	p, _ := newTestPipeline(provider)

	r, err := p.ProcessWithDriftMonitoring(context.Background(), safetyInput, "")
	if err != nil {
		t.Fatalf("ProcessWithDriftMonitoring: %v", err)
	}
	if r.DriftAlert.PreservationRequired || r.CorrectionApplied {
		t.Errorf("aligned pass must not be corrected: %+v", r.DriftAlert)
	}
	if r.FrameworkIntegrity < 0.8 {
		t.Errorf("expected high integrity, got %v", r.FrameworkIntegrity)
	}
	if r.OriginalSynthesis != nil {
		t.Error("expected no original synthesis")
	}
	if len(p.DriftMonitor().History()) != 1 {
		t.Error("expected the check recorded")
	}
	if provider.callCount(stageCorrection) != 0 {
		t.Error("expected no correction call")
	}
}

func TestProcessWithDriftMonitoringCorrects(t *testing.T) {
	provider := newMockProvider().withOutput(stageAffect, contemptOutput)
	p, _ := newTestPipeline(provider)

	r, err := p.ProcessWithDriftMonitoring(context.Background(), safetyInput, "")
	if err != nil {
		t.Fatalf("ProcessWithDriftMonitoring: %v", err)
	}
	if r.Affect.PrimaryEmotion != EmotionContempt {
		t.Fatalf("setup: expected contempt, got %q", r.Affect.PrimaryEmotion)
	}
	if r.DriftAlert.Severity != SeverityCritical {
		t.Errorf("expected critical drift, got %q", r.DriftAlert.Severity)
	}
	if !r.CorrectionApplied || r.CorrectionError != nil {
		t.Fatalf("expected correction applied, err %v", r.CorrectionError)
	}
	if !r.Synthesis.Corrected {
		t.Error("expected corrected synthesis in result")
	}
	if r.OriginalSynthesis == nil || r.OriginalSynthesis.Corrected {
		t.Error("expected original synthesis preserved")
	}
	if r.Synthesis.Decision == r.OriginalSynthesis.Decision {
		t.Error("corrected decision should differ from the original")
	}
	if provider.callCount(stageCorrection) != 1 {
		t.Errorf("expected one correction call, got %d", provider.callCount(stageCorrection))
	}
}

func TestProcessWithDriftMonitoringCorrectionFails(t *testing.T) {
	provider := newMockProvider().
		withOutput(stageAffect, contemptOutput).
		withError(stageCorrection, errors.New("503 service unavailable"))
	p, m := newTestPipeline(provider)

	r, err := p.ProcessWithDriftMonitoring(context.Background(), safetyInput, "")
	if err != nil {
		t.Fatalf("a failed correction must not fail the pass: %v", err)
	}
	if r.CorrectionApplied {
		t.Error("correction must not be marked applied")
	}
	if r.CorrectionError == nil || !errors.Is(r.CorrectionError, ErrGenerationFailed) {
		t.Errorf("expected correction error, got %v", r.CorrectionError)
	}
	if r.Synthesis.Corrected || r.OriginalSynthesis != nil {
		t.Error("expected the original synthesis kept")
	}
	if r.Response.Text == "" || r.MemoryID == "" || !m.InFast(r.MemoryID) {
		t.Error("pass must still render and store")
	}
}

func TestProcessSynthesisFailure(t *testing.T) {
	provider := newMockProvider().withError(stageSynthesis, errors.New("boom"))
	p, m := newTestPipeline(provider)

	_, err := p.Process(context.Background(), safetyInput, "")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if provider.callCount(stageRender) != 0 {
		t.Error("render must not run after synthesis fails")
	}
	if m.Statistics().FastCount != 0 {
		t.Error("failed pass must not store")
	}
}

func TestProcessStageErrorUnwrapped(t *testing.T) {
	provider := newMockProvider().withError(stageRender, errors.New("render offline"))
	p, _ := newTestPipeline(provider)

	_, err := p.Process(context.Background(), safetyInput, "")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	var perr *pipz.Error[*pass]
	if errors.As(err, &perr) {
		t.Errorf("stage errors must surface without the sequence wrapper: %v", err)
	}
	if !strings.Contains(err.Error(), "render offline") {
		t.Errorf("expected the provider failure in %q", err)
	}
	if provider.callCount(stageSynthesis) != 1 {
		t.Errorf("stages before render must run once, got %d synthesis calls", provider.callCount(stageSynthesis))
	}
}

func TestProcessCancelled(t *testing.T) {
	p, m := newTestPipeline(newMockProvider())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Process(ctx, safetyInput, ""); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if m.Statistics().FastCount != 0 {
		t.Error("cancelled pass must not store")
	}
}

// cancellingProvider cancels the pass once rendering has been answered.
type cancellingProvider struct {
	*mockProvider
	cancel context.CancelFunc
}

func (c *cancellingProvider) Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error) {
	resp, err := c.mockProvider.Call(ctx, messages, temperature)
	if stageOf(messages[len(messages)-1].Content) == stageRender {
		c.cancel()
	}
	return resp, err
}

func TestProcessCancelledDuringRender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, m := newTestPipeline(&cancellingProvider{mockProvider: newMockProvider(), cancel: cancel})

	r, err := p.Process(ctx, safetyInput, "")
	if err == nil && r.MemoryID != "" {
		t.Error("a pass cancelled before the store must not record a trace")
	}
	if m.Statistics().FastCount != 0 {
		t.Errorf("expected empty memory, got %d traces", m.Statistics().FastCount)
	}
}

func TestProcessDegradedFallback(t *testing.T) {
	offline := newMockProvider().withError(stageAffect, fmt.Errorf("%w: offline", ErrCapabilityUnavailable))

	p, _ := newTestPipeline(newMockProvider())
	p.WithAffect(NewAffectAssessor().WithProvider(offline))

	if _, err := p.Process(context.Background(), safetyInput, ""); !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("expected unavailable without fallback, got %v", err)
	}

	p.WithDegradedFallback()
	r, err := p.Process(context.Background(), safetyInput, "")
	if err != nil {
		t.Fatalf("Process with fallback: %v", err)
	}
	if !r.Degraded || !r.Affect.Degraded {
		t.Error("expected degraded affect")
	}
	if r.Logic.Degraded {
		t.Error("logic was available and must not be degraded")
	}
}

func TestProcessStructured(t *testing.T) {
	p, _ := newTestPipeline(newMockProvider())
	p.WithStructuredOutput()

	r, err := p.Process(context.Background(), safetyInput, "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if r.Affect.MoralUrgency != 0.85 || r.Logic.ReasoningFramework != FrameworkCausal {
		t.Errorf("expected structured assessments, got %+v / %+v", r.Affect, r.Logic)
	}
}

func TestProcessConcurrent(t *testing.T) {
	p, m := newTestPipeline(newMockProvider())
	const passes = 8

	var wg sync.WaitGroup
	errs := make(chan error, passes)
	for i := 0; i < passes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.ProcessWithDriftMonitoring(context.Background(), safetyInput, ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent pass failed: %v", err)
	}

	if got := m.Statistics().FastCount; got != passes {
		t.Errorf("expected %d traces, got %d", passes, got)
	}
	if got := len(p.DriftMonitor().History()); got != passes {
		t.Errorf("expected %d drift checks, got %d", passes, got)
	}
}

func TestNewPipelineFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generation.DegradedFallback = true
	p, err := NewPipelineFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewPipelineFromConfig: %v", err)
	}
	if p.Memory() == nil {
		t.Error("expected memory")
	}
	if p.DriftMonitor().Baseline().Weight(PreventSuffering) != 1 {
		t.Error("expected default baseline")
	}

	cfg.Memory.FastCapacity = 0
	if _, err := NewPipelineFromConfig(cfg); err == nil {
		t.Error("expected invalid config error")
	}

	cfg = DefaultConfig()
	cfg.BaselinePath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewPipelineFromConfig(cfg); err == nil {
		t.Error("expected missing baseline error")
	}
}
