package syntra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// ErrNoCandidates is returned when a strategy's selection is empty.
var ErrNoCandidates = errors.New("no memories qualify for rehearsal")

// RehearsalContext is the state a session runs under.
type RehearsalContext struct {
	Attention  float64  `json:"attention"`
	Motivation float64  `json:"motivation"`
	Trigger    string   `json:"trigger,omitempty"` // manual, cycle, scheduled
	Tags       []string `json:"tags,omitempty"`
}

// RehearsalSession records one completed rehearsal.
type RehearsalSession struct {
	ID                   string            `json:"id"`
	Strategy             RehearsalStrategy `json:"strategy"`
	MemoryIDs            []string          `json:"memory_ids"`
	DerivedIDs           []string          `json:"derived_ids,omitempty"`
	StartedAt            time.Time         `json:"started_at"`
	Duration             time.Duration     `json:"duration"`
	Effectiveness        float64           `json:"effectiveness"`
	RetentionImprovement float64           `json:"retention_improvement"`
	Context              RehearsalContext  `json:"context"`
}

// StrategyStats accumulates outcomes per strategy.
type StrategyStats struct {
	Sessions             int       `json:"sessions"`
	ItemsRehearsed       int       `json:"items_rehearsed"`
	AverageEffectiveness float64   `json:"average_effectiveness"`
	AverageRetention     float64   `json:"average_retention"`
	LastRun              time.Time `json:"last_run"`
}

// RehearsalStatistics summarizes the engine.
type RehearsalStatistics struct {
	TotalSessions        int                                 `json:"total_sessions"`
	AverageEffectiveness float64                             `json:"average_effectiveness"`
	Pending              int                                 `json:"pending"`
	ByStrategy           map[RehearsalStrategy]StrategyStats `json:"by_strategy"`
}

// RehearsalEngine strengthens memories by running rehearsal strategies
// against a Memory. Sessions are serialized; each holds the memory lock
// for one bounded batch.
type RehearsalEngine struct {
	memory  *Memory
	cfg     RehearsalConfig
	clock   clockz.Clock
	journal Journal

	run sync.Mutex // serializes sessions

	mu       sync.Mutex
	sessions []RehearsalSession
	stats    map[RehearsalStrategy]*StrategyStats
	pending  []ScheduledSession

	loopMu sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

// NewRehearsalEngine creates an engine over memory.
func NewRehearsalEngine(memory *Memory, cfg RehearsalConfig) *RehearsalEngine {
	return &RehearsalEngine{
		memory: memory,
		cfg:    cfg,
		clock:  clockz.RealClock,
		stats:  make(map[RehearsalStrategy]*StrategyStats),
	}
}

// WithClock sets the time source. The memory keeps its own clock; share
// one between them in tests.
func (e *RehearsalEngine) WithClock(c clockz.Clock) *RehearsalEngine {
	e.clock = c
	return e
}

// WithJournal records every completed session to j.
func (e *RehearsalEngine) WithJournal(j Journal) *RehearsalEngine {
	e.journal = j
	return e
}

// DefaultContext returns a context built from the configured attention
// and motivation.
func (e *RehearsalEngine) DefaultContext(trigger string) RehearsalContext {
	return RehearsalContext{Attention: e.cfg.Attention, Motivation: e.cfg.Motivation, Trigger: trigger}
}

// RunSession runs one session of strategy. It returns ErrNoCandidates
// when nothing qualifies; such attempts are not recorded.
func (e *RehearsalEngine) RunSession(ctx context.Context, strategy RehearsalStrategy, rc RehearsalContext) (RehearsalSession, error) {
	if !strategy.Valid() {
		return RehearsalSession{}, fmt.Errorf("rehearsal: %w: unknown strategy %q", ErrInvalidInput, strategy)
	}
	if err := ctx.Err(); err != nil {
		return RehearsalSession{}, fmt.Errorf("rehearsal: %w", err)
	}

	e.run.Lock()
	defer e.run.Unlock()
	return e.runLocked(ctx, strategy, rc)
}

func (e *RehearsalEngine) runLocked(ctx context.Context, strategy RehearsalStrategy, rc RehearsalContext) (RehearsalSession, error) {
	rc.Tags = append([]string(nil), rc.Tags...)
	start := e.clock.Now()

	e.memory.mu.Lock()
	outcome := e.memory.rehearseLocked(strategy, rc, e.cfg, e.memory.clock.Now())
	e.memory.mu.Unlock()

	if len(outcome.touched) == 0 {
		return RehearsalSession{}, fmt.Errorf("rehearsal: %s: %w", strategy, ErrNoCandidates)
	}

	session := RehearsalSession{
		ID:                   uuid.New().String(),
		Strategy:             strategy,
		MemoryIDs:            outcome.touched,
		DerivedIDs:           outcome.derived,
		StartedAt:            start,
		Duration:             e.clock.Now().Sub(start),
		Effectiveness:        outcome.effectiveness(),
		RetentionImprovement: outcome.retention(),
		Context:              rc,
	}
	e.record(session)

	if e.journal != nil {
		if err := e.journal.RecordSession(ctx, session); err != nil {
			capitan.Error(ctx, JournalFailed,
				FieldComponent.Field("rehearsal"),
				FieldError.Field(err),
			)
		}
	}

	capitan.Emit(ctx, RehearsalCompleted,
		FieldSessionID.Field(session.ID),
		FieldStrategy.Field(string(strategy)),
		FieldItemCount.Field(len(session.MemoryIDs)),
		FieldEffectiveness.Field(float32(session.Effectiveness)),
		FieldDuration.Field(session.Duration),
	)
	return session, nil
}

func (e *RehearsalEngine) record(s RehearsalSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions = append(e.sessions, s)
	st, ok := e.stats[s.Strategy]
	if !ok {
		st = &StrategyStats{}
		e.stats[s.Strategy] = st
	}
	n := float64(st.Sessions)
	st.AverageEffectiveness = (st.AverageEffectiveness*n + s.Effectiveness) / (n + 1)
	st.AverageRetention = (st.AverageRetention*n + s.RetentionImprovement) / (n + 1)
	st.Sessions++
	st.ItemsRehearsed += len(s.MemoryIDs)
	st.LastRun = s.StartedAt
}

// RunCycle picks a strategy and runs it. Untried strategies go first in
// AllStrategies order, then the rest by average effectiveness. Strategies
// with nothing to rehearse are skipped; ErrNoCandidates is returned when
// every strategy is empty.
func (e *RehearsalEngine) RunCycle(ctx context.Context) (RehearsalSession, error) {
	e.run.Lock()
	defer e.run.Unlock()

	rc := e.DefaultContext("cycle")
	for _, strategy := range e.preference() {
		if err := ctx.Err(); err != nil {
			return RehearsalSession{}, fmt.Errorf("rehearsal: %w", err)
		}
		s, err := e.runLocked(ctx, strategy, rc)
		if errors.Is(err, ErrNoCandidates) {
			continue
		}
		return s, err
	}
	return RehearsalSession{}, fmt.Errorf("rehearsal: %w", ErrNoCandidates)
}

// preference orders strategies for the next cycle.
func (e *RehearsalEngine) preference() []RehearsalStrategy {
	e.mu.Lock()
	defer e.mu.Unlock()

	var untried, tried []RehearsalStrategy
	for _, s := range AllStrategies {
		if st, ok := e.stats[s]; ok && st.Sessions > 0 {
			tried = append(tried, s)
		} else {
			untried = append(untried, s)
		}
	}
	sort.SliceStable(tried, func(i, j int) bool {
		return e.stats[tried[i]].AverageEffectiveness > e.stats[tried[j]].AverageEffectiveness
	})
	return append(untried, tried...)
}

// Sessions returns the session log, oldest first.
func (e *RehearsalEngine) Sessions() []RehearsalSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RehearsalSession(nil), e.sessions...)
}

// Statistics summarizes sessions and pending schedules.
func (e *RehearsalEngine) Statistics() RehearsalStatistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := RehearsalStatistics{
		TotalSessions: len(e.sessions),
		Pending:       len(e.pending),
		ByStrategy:    make(map[RehearsalStrategy]StrategyStats, len(e.stats)),
	}
	for s, st := range e.stats {
		out.ByStrategy[s] = *st
	}
	total := 0.0
	for _, s := range e.sessions {
		total += s.Effectiveness
	}
	if len(e.sessions) > 0 {
		out.AverageEffectiveness = total / float64(len(e.sessions))
	}
	return out
}
