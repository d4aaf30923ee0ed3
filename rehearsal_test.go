package syntra

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
	capitantesting "github.com/zoobzio/capitan/testing"
	"github.com/zoobzio/clockz"
)

var focused = RehearsalContext{Attention: 1, Motivation: 1, Trigger: "manual"}

func newTestEngine(m *Memory, clock *clockz.FakeClock) *RehearsalEngine {
	return NewRehearsalEngine(m, DefaultRehearsalConfig()).WithClock(clock)
}

func TestRunSessionUnknownStrategy(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	_, err := newTestEngine(m, clock).RunSession(context.Background(), "cramming", focused)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRunSessionCancelledContext(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	m.Store(context.Background(), "anything", 0, 0, FormationContext{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(m, clock).RunSession(ctx, StrategyMaintenance, focused)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunSessionEmptySelectionNotRecorded(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	engine := newTestEngine(m, clock)

	_, err := engine.RunSession(context.Background(), StrategyDistributed, focused)
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
	if len(engine.Sessions()) != 0 || engine.Statistics().TotalSessions != 0 {
		t.Error("empty attempts must not be recorded")
	}
}

func TestDistributedPractice(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	id := m.Store(ctx, "weak old note", 0, 0, FormationContext{})
	engine := newTestEngine(m, clock)

	if _, err := engine.RunSession(ctx, StrategyDistributed, focused); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("fresh trace must not qualify, got %v", err)
	}

	clock.Advance(48 * time.Hour)
	s, err := engine.RunSession(ctx, StrategyDistributed, focused)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if len(s.MemoryIDs) != 1 || s.MemoryIDs[0] != id {
		t.Errorf("expected the aged trace, got %v", s.MemoryIDs)
	}
	// Spacing far beyond the optimum gives full effect.
	if s.Effectiveness < 0.99 {
		t.Errorf("expected near-full effectiveness, got %v", s.Effectiveness)
	}
	tr, _ := m.Get(id)
	if math.Abs(tr.Strength-0.5) > 1e-6 {
		t.Errorf("expected strength 0.5, got %v", tr.Strength)
	}
	if tr.AccessCount != 1 || !tr.LastAccessedAt.Equal(clock.Now()) {
		t.Errorf("expected access recorded: %+v", tr)
	}
}

func TestMassedPractice(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	id := m.Store(ctx, "new fact", 0, 0, FormationContext{})
	engine := newTestEngine(m, clock)

	s, err := engine.RunSession(ctx, StrategyMassed, focused)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	tr, _ := m.Get(id)
	// Three repetitions weighted 1, 0.5, 0.25 at gain 0.1.
	if math.Abs(tr.Strength-0.475) > 1e-9 {
		t.Errorf("expected strength 0.475, got %v", tr.Strength)
	}
	if math.Abs(s.RetentionImprovement-0.175) > 1e-9 {
		t.Errorf("expected retention 0.175, got %v", s.RetentionImprovement)
	}

	// Once consolidation has started the trace no longer qualifies.
	if _, err := engine.RunSession(ctx, StrategyMassed, focused); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates on second run, got %v", err)
	}
}

func TestElaborativeRehearsal(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	rich := m.Store(ctx, "safety violation report warehouse", 0, 0, FormationContext{})
	m.Store(ctx, "sparse", 0, 0, FormationContext{})

	s, err := newTestEngine(m, clock).RunSession(ctx, StrategyElaborative, focused)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if len(s.MemoryIDs) != 1 || s.MemoryIDs[0] != rich {
		t.Errorf("expected only the richly linked trace, got %v", s.MemoryIDs)
	}
	// Four links out of five.
	if math.Abs(s.Effectiveness-0.8) > 1e-9 {
		t.Errorf("expected effectiveness 0.8, got %v", s.Effectiveness)
	}
}

func TestMaintenanceRehearsal(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	m.Store(ctx, "recent one", 0, 0, FormationContext{})
	m.Store(ctx, "recent two", 0, 0, FormationContext{})

	s, err := newTestEngine(m, clock).RunSession(ctx, StrategyMaintenance, RehearsalContext{Attention: 0.5})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if len(s.MemoryIDs) != 2 {
		t.Errorf("expected both recent traces, got %v", s.MemoryIDs)
	}
	if math.Abs(s.Effectiveness-0.35) > 1e-9 {
		t.Errorf("expected effectiveness 0.7*0.5, got %v", s.Effectiveness)
	}
}

func TestInterleavingRehearsal(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	engine := newTestEngine(m, clock)

	s1 := m.Store(ctx, "safety first", 0, 0, FormationContext{})
	s2 := m.Store(ctx, "safety again", 0, 0, FormationContext{})
	if _, err := engine.RunSession(ctx, StrategyInterleaving, focused); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("a single theme must not interleave, got %v", err)
	}

	b1 := m.Store(ctx, "budget review", 0, 0, FormationContext{})
	b2 := m.Store(ctx, "budget cuts", 0, 0, FormationContext{})

	s, err := engine.RunSession(ctx, StrategyInterleaving, focused)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	want := []string{b1, s1, b2, s2}
	if strings.Join(s.MemoryIDs, ",") != strings.Join(want, ",") {
		t.Errorf("expected round-robin order %v, got %v", want, s.MemoryIDs)
	}
}

func TestVariableEncoding(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	first := m.Store(ctx, "joyful reunion", 0.9, 0, FormationContext{})
	second := m.Store(ctx, "tense meeting", -0.5, 0, FormationContext{})
	m.Store(ctx, "neutral memo", 0, 0, FormationContext{})

	s, err := newTestEngine(m, clock).RunSession(ctx, StrategyVariableEncoding, focused)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if len(s.MemoryIDs) != 2 || s.MemoryIDs[0] != first || s.MemoryIDs[1] != second {
		t.Fatalf("expected emotional traces by valence, got %v", s.MemoryIDs)
	}
	if ids := m.ByTerm("encoded-visual"); len(ids) != 1 || ids[0] != first {
		t.Errorf("expected visual encoding link on first trace, got %v", ids)
	}
	if ids := m.ByTerm("encoded-auditory"); len(ids) != 1 || ids[0] != second {
		t.Errorf("expected auditory encoding link on second trace, got %v", ids)
	}
}

func TestGenerativeReplay(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	id := m.Store(ctx, "I remember when my team fixed the leak", 0.8, 1, FormationContext{ConsciousnessLevel: 1})
	m.Consolidate(ctx)
	if tr, _ := m.Get(id); tr.StreamType != StreamEpisodic {
		t.Fatalf("setup: expected episodic trace, got %q", tr.StreamType)
	}

	s, err := newTestEngine(m, clock).RunSession(ctx, StrategyGenerativeReplay, focused)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if len(s.DerivedIDs) != DefaultRehearsalConfig().Variations {
		t.Fatalf("expected %d derived traces, got %v", DefaultRehearsalConfig().Variations, s.DerivedIDs)
	}
	source, _ := m.Get(id)
	for i, did := range s.DerivedIDs {
		if !m.InSlow(did) {
			t.Errorf("derived trace %s not in slow stream", did)
		}
		d, _ := m.Get(did)
		if d.StreamType != StreamSlowLearning {
			t.Errorf("expected slow-learning type, got %q", d.StreamType)
		}
		if !strings.HasSuffix(d.Content, ")") || !strings.Contains(d.Content, "replay") {
			t.Errorf("unexpected derived content %q", d.Content)
		}
		if d.Strength >= source.Strength {
			t.Errorf("derived trace %d must be weaker than its source", i)
		}
		if !containsString(d.FormationContext.EnvironmentTags, "source:"+id) {
			t.Errorf("derived trace missing source tag: %v", d.FormationContext.EnvironmentTags)
		}
	}
}

func TestContrastiveReplay(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	x := m.Store(ctx, "safety violation report", 0.9, 1, FormationContext{})
	y := m.Store(ctx, "safety drill practice", -0.9, 1, FormationContext{})
	m.Consolidate(ctx)

	s, err := newTestEngine(m, clock).RunSession(ctx, StrategyContrastive, focused)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if len(s.MemoryIDs) != 2 {
		t.Fatalf("expected one pair, got %v", s.MemoryIDs)
	}
	// Jaccard 1/5 and valence gap 1.8: 0.5*0.8 + 0.5*0.9.
	if math.Abs(s.Effectiveness-0.85) > 1e-9 {
		t.Errorf("expected effectiveness 0.85, got %v", s.Effectiveness)
	}
	tx, _ := m.Get(x)
	ty, _ := m.Get(y)
	if !containsString(tx.SemanticLinks, "drill") || !containsString(ty.SemanticLinks, "violation") {
		t.Errorf("expected cross links, got %v and %v", tx.SemanticLinks, ty.SemanticLinks)
	}
}

func TestRehearsalNeverLowersConsolidation(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	m.Store(ctx, "I remember when my team fixed the leak", 0.8, 1, FormationContext{ConsciousnessLevel: 1})
	m.Store(ctx, "safety violation report", 0.9, 1, FormationContext{})
	m.Store(ctx, "safety drill practice", -0.9, 1, FormationContext{})
	m.Consolidate(ctx)
	m.Store(ctx, "budget review meeting notes", 0.4, 0.3, FormationContext{})
	m.Store(ctx, "quiet afternoon", 0, 0, FormationContext{})
	engine := newTestEngine(m, clock)

	for _, strategy := range AllStrategies {
		before := map[string]float64{}
		for _, tr := range m.Snapshot() {
			before[tr.ID] = tr.ConsolidationLevel
		}
		if _, err := engine.RunSession(ctx, strategy, focused); err != nil && !errors.Is(err, ErrNoCandidates) {
			t.Fatalf("%s: %v", strategy, err)
		}
		for _, tr := range m.Snapshot() {
			if prev, ok := before[tr.ID]; ok && tr.ConsolidationLevel < prev {
				t.Errorf("%s lowered consolidation of %s: %v -> %v", strategy, tr.ID, prev, tr.ConsolidationLevel)
			}
			if tr.Strength < 0 || tr.Strength > 1 || tr.ConsolidationLevel > 1 {
				t.Errorf("%s left %s out of range: %+v", strategy, tr.ID, tr)
			}
		}
		clock.Advance(time.Hour)
	}
}

func TestRunCyclePreference(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	m.Store(ctx, "safety", 0, 0, FormationContext{})
	engine := newTestEngine(m, clock)

	// Distributed has nothing old enough, so massed runs first.
	s, err := engine.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if s.Strategy != StrategyMassed {
		t.Errorf("expected massed first, got %q", s.Strategy)
	}
	if s.Context.Trigger != "cycle" {
		t.Errorf("expected cycle trigger, got %q", s.Context.Trigger)
	}

	// Massed is now tried and elaborative needs two links.
	s, err = engine.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if s.Strategy != StrategyMaintenance {
		t.Errorf("expected maintenance next, got %q", s.Strategy)
	}

	stats := engine.Statistics()
	if stats.TotalSessions != 2 || stats.ByStrategy[StrategyMassed].Sessions != 1 {
		t.Errorf("unexpected statistics: %+v", stats)
	}
}

func TestRunCycleEmptyMemory(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	_, err := newTestEngine(m, clock).RunCycle(context.Background())
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestRehearsalJournal(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	m.Store(ctx, "recent", 0, 0, FormationContext{})
	journal := &mockJournal{}
	engine := newTestEngine(m, clock).WithJournal(journal)

	s, err := engine.RunSession(ctx, StrategyMaintenance, focused)
	if err != nil {
		t.Fatal(err)
	}
	recent, _ := journal.RecentSessions(ctx, 5)
	if len(recent) != 1 || recent[0].ID != s.ID {
		t.Errorf("expected session journaled, got %v", recent)
	}
}

func TestRehearsalJournalFailure(t *testing.T) {
	capture := capitantesting.NewEventCapture()
	listener := capitan.Hook(JournalFailed, capture.Handler())
	defer listener.Close()

	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	m.Store(ctx, "recent", 0, 0, FormationContext{})
	engine := newTestEngine(m, clock).WithJournal(&mockJournal{err: errors.New("locked")})

	if _, err := engine.RunSession(ctx, StrategyMaintenance, focused); err != nil {
		t.Fatalf("journal failure must not fail the session: %v", err)
	}
	if len(engine.Sessions()) != 1 {
		t.Error("session must still be recorded in memory")
	}
	if !capture.WaitForCount(1, time.Second) {
		t.Fatal("expected JournalFailed event")
	}
	if got := getStringField(capture.Events()[0], FieldComponent.Name()); got != "rehearsal" {
		t.Errorf("expected component rehearsal, got %q", got)
	}
}
