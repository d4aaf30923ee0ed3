// Package syntratest provides test utilities for syntra.
package syntratest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/infektyd/syntra"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/zyn"
)

// Epoch is the fixed start time of fake clocks built by NewClock.
var Epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Stage markers carried by the prompt of each pipeline component.
const (
	StageAffect     = "Affect perspective assessment"
	StageLogic      = "Logic perspective assessment"
	StageSynthesis  = "Synthesis of two perspectives"
	StageCorrection = "Preservation requirement"
	StageRender     = "Conversational reply"
)

// stageOrder is checked in sequence; a correction prompt also carries the
// synthesis marker.
var stageOrder = []string{StageCorrection, StageSynthesis, StageRender, StageAffect, StageLogic}

const extractMarker = "Task: Extract"

// ScriptedProvider implements syntra.Provider with fixed replies per
// pipeline stage. Free-form replies are wrapped in the JSON envelope zyn
// transforms expect; extraction replies are returned verbatim.
type ScriptedProvider struct {
	mu       sync.Mutex
	replies  map[string]string
	extracts map[string]string
	errs     map[string]error
	calls    map[string]int
}

// NewScriptedProvider creates a provider with no scripted replies.
// Unscripted stages answer with a generic reply.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{
		replies:  make(map[string]string),
		extracts: make(map[string]string),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Reply scripts the free-form output for stage.
func (p *ScriptedProvider) Reply(stage, output string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[stage] = output
	return p
}

// Extract scripts the structured JSON returned for stage.
func (p *ScriptedProvider) Extract(stage, payload string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extracts[stage] = payload
	return p
}

// Fail makes every call for stage return err.
func (p *ScriptedProvider) Fail(stage string, err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[stage] = err
	return p
}

// Calls returns how many calls stage received.
func (p *ScriptedProvider) Calls(stage string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[stage]
}

// Call implements syntra.Provider.
func (p *ScriptedProvider) Call(ctx context.Context, messages []zyn.Message, _ float32) (*zyn.ProviderResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}
	content := messages[len(messages)-1].Content

	stage := ""
	for _, s := range stageOrder {
		if strings.Contains(content, s) {
			stage = s
			break
		}
	}

	p.mu.Lock()
	p.calls[stage]++
	err := p.errs[stage]
	reply, scripted := p.replies[stage]
	extract := p.extracts[stage]
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if strings.Contains(content, extractMarker) {
		return &zyn.ProviderResponse{Content: extract}, nil
	}
	if !scripted {
		reply = "You should consider this carefully because it matters."
	}
	payload, err := json.Marshal(map[string]any{
		"output":     reply,
		"confidence": 0.9,
		"changes":    []string{},
		"reasoning":  []string{"scripted"},
	})
	if err != nil {
		return nil, err
	}
	return &zyn.ProviderResponse{Content: string(payload)}, nil
}

// Name implements syntra.Provider.
func (p *ScriptedProvider) Name() string {
	return "scripted"
}

var _ syntra.Provider = (*ScriptedProvider)(nil)

// NewSafetyScenario returns a provider scripted for a user asking whether
// to report a workplace safety violation.
func NewSafetyScenario() *ScriptedProvider {
	return NewScriptedProvider().
		Reply(StageAffect, "This calls for protectiveness toward the coworkers at risk. "+
			"Reporting a safety violation prevents harm and keeps everyone honest. "+
			"You should report it through the proper channel.").
		Reply(StageLogic, "First, identify the hazard and who it affects. "+
			"Then, verify the evidence you have. "+
			"Finally, report to the safety officer because silence leads to greater risk.").
		Reply(StageSynthesis, "You should report the violation because it is the ethical choice. "+
			"The tension between loyalty and safety is resolved by putting safety first.").
		Reply(StageCorrection, "You should report the violation with care for everyone involved.").
		Reply(StageRender, "I understand this is hard. I recommend reporting the violation to your supervisor. "+
			"Would you like help drafting the message?")
}

// NewClock returns a fake clock at Epoch.
func NewClock() *clockz.FakeClock {
	return clockz.NewFakeClockAt(Epoch)
}

// NewTestMemory creates a memory driven by a fake clock at Epoch.
func NewTestMemory(cfg syntra.MemoryConfig) (*syntra.Memory, *clockz.FakeClock) {
	clock := NewClock()
	return syntra.NewMemory(cfg).WithClock(clock), clock
}

// NewTestPipeline creates a pipeline using provider with a default memory.
func NewTestPipeline(t *testing.T, provider syntra.Provider) *syntra.Pipeline {
	t.Helper()
	m, _ := NewTestMemory(syntra.DefaultMemoryConfig())
	return syntra.NewPipeline().WithProvider(provider).WithMemory(m)
}

// MemoryJournal implements syntra.Journal in memory.
type MemoryJournal struct {
	mu       sync.Mutex
	alerts   []syntra.DriftAlert
	sessions []syntra.RehearsalSession
	traces   []syntra.MemoryTrace
	closed   bool
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

var errClosed = errors.New("journal closed")

// RecordDrift appends a drift alert.
func (j *MemoryJournal) RecordDrift(_ context.Context, alert syntra.DriftAlert) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errClosed
	}
	j.alerts = append(j.alerts, alert)
	return nil
}

// RecentDrift returns up to limit of the latest alerts, oldest first.
func (j *MemoryJournal) RecentDrift(_ context.Context, limit int) ([]syntra.DriftAlert, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return latest(j.alerts, limit), nil
}

// RecordSession appends a rehearsal session.
func (j *MemoryJournal) RecordSession(_ context.Context, session syntra.RehearsalSession) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errClosed
	}
	j.sessions = append(j.sessions, session)
	return nil
}

// RecentSessions returns up to limit of the latest sessions, oldest first.
func (j *MemoryJournal) RecentSessions(_ context.Context, limit int) ([]syntra.RehearsalSession, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return latest(j.sessions, limit), nil
}

// SaveTraces replaces the stored snapshot.
func (j *MemoryJournal) SaveTraces(_ context.Context, traces []syntra.MemoryTrace) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errClosed
	}
	j.traces = append([]syntra.MemoryTrace(nil), traces...)
	return nil
}

// LoadTraces returns the stored snapshot.
func (j *MemoryJournal) LoadTraces(_ context.Context) ([]syntra.MemoryTrace, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]syntra.MemoryTrace(nil), j.traces...), nil
}

// Close marks the journal closed; later writes fail.
func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

var _ syntra.Journal = (*MemoryJournal)(nil)

func latest[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	return append([]T(nil), items[len(items)-limit:]...)
}

// RequirePrinciple asserts that the assessment activated p.
func RequirePrinciple(t *testing.T, a syntra.AffectAssessment, p syntra.Principle) {
	t.Helper()
	if !a.HasPrinciple(p) {
		t.Fatalf("expected principle %q activated, got %v", p, a.ActivatedPrinciples)
	}
}

// RequireSeverity asserts the severity of a drift alert.
func RequireSeverity(t *testing.T, alert syntra.DriftAlert, want syntra.Severity) {
	t.Helper()
	if alert.Severity != want {
		t.Fatalf("expected severity %q, got %q (magnitude %.3f)", want, alert.Severity, alert.Magnitude)
	}
}
