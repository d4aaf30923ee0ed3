package syntra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("rehearsal loop already running")

// ScheduledSession is a rehearsal queued for a future time.
type ScheduledSession struct {
	ID       string            `json:"id"`
	DueAt    time.Time         `json:"due_at"`
	Strategy RehearsalStrategy `json:"strategy"`
	Context  RehearsalContext  `json:"context"`
}

// Schedule queues strategy to run at or after at. The returned id can be
// passed to Cancel.
func (e *RehearsalEngine) Schedule(ctx context.Context, at time.Time, strategy RehearsalStrategy, rc RehearsalContext) (string, error) {
	if !strategy.Valid() {
		return "", fmt.Errorf("schedule: %w: unknown strategy %q", ErrInvalidInput, strategy)
	}
	if rc.Trigger == "" {
		rc.Trigger = "scheduled"
	}
	s := ScheduledSession{ID: uuid.New().String(), DueAt: at, Strategy: strategy, Context: rc}

	e.mu.Lock()
	e.pending = append(e.pending, s)
	sort.SliceStable(e.pending, func(i, j int) bool { return e.pending[i].DueAt.Before(e.pending[j].DueAt) })
	e.mu.Unlock()

	capitan.Emit(ctx, RehearsalScheduled,
		FieldSessionID.Field(s.ID),
		FieldStrategy.Field(string(strategy)),
		FieldDuration.Field(at.Sub(e.clock.Now())),
	)
	return s.ID, nil
}

// Cancel removes a pending session. It reports whether id was pending.
func (e *RehearsalEngine) Cancel(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.pending {
		if s.ID == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns queued sessions, earliest first.
func (e *RehearsalEngine) Pending() []ScheduledSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ScheduledSession(nil), e.pending...)
}

// RunDue runs every pending session whose time has come, in due order.
// A due session that finds nothing to rehearse is dropped and reported
// through RehearsalFailed.
func (e *RehearsalEngine) RunDue(ctx context.Context) []RehearsalSession {
	now := e.clock.Now()
	e.mu.Lock()
	n := 0
	for n < len(e.pending) && !e.pending[n].DueAt.After(now) {
		n++
	}
	due := append([]ScheduledSession(nil), e.pending[:n]...)
	e.pending = append([]ScheduledSession(nil), e.pending[n:]...)
	e.mu.Unlock()

	var out []RehearsalSession
	for _, s := range due {
		session, err := e.RunSession(ctx, s.Strategy, s.Context)
		if err != nil {
			capitan.Error(ctx, RehearsalFailed,
				FieldSessionID.Field(s.ID),
				FieldStrategy.Field(string(s.Strategy)),
				FieldError.Field(err),
			)
			continue
		}
		out = append(out, session)
	}
	return out
}

// Start launches the background loop. It polls for due sessions every
// PollInterval and runs a cycle every Interval until ctx is done or Stop
// is called.
func (e *RehearsalEngine) Start(ctx context.Context) error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.stop != nil {
		select {
		case <-e.done:
			// The previous loop ended with its context.
		default:
			return ErrAlreadyRunning
		}
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.loop(ctx, e.stop, e.done)
	return nil
}

// Stop halts the loop and waits for it to exit. It is safe to call when
// the loop is not running.
func (e *RehearsalEngine) Stop() {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.stop == nil {
		return
	}
	close(e.stop)
	<-e.done
	e.stop, e.done = nil, nil
}

func (e *RehearsalEngine) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	next := e.clock.Now().Add(e.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-e.clock.After(e.cfg.PollInterval):
		}

		e.RunDue(ctx)
		if now := e.clock.Now(); !now.Before(next) {
			if _, err := e.RunCycle(ctx); err != nil && !errors.Is(err, ErrNoCandidates) {
				capitan.Error(ctx, RehearsalFailed,
					FieldStrategy.Field("cycle"),
					FieldError.Field(err),
				)
			}
			next = now.Add(e.cfg.Interval)
		}
	}
}
