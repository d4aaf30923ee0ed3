package syntra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
	capitantesting "github.com/zoobzio/capitan/testing"
	"go.uber.org/goleak"
)

func TestScheduleOrdersByDueTime(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	engine := newTestEngine(m, clock)
	ctx := context.Background()

	late, err := engine.Schedule(ctx, clock.Now().Add(2*time.Hour), StrategyMaintenance, focused)
	if err != nil {
		t.Fatal(err)
	}
	early, err := engine.Schedule(ctx, clock.Now().Add(time.Hour), StrategyElaborative, RehearsalContext{Attention: 1})
	if err != nil {
		t.Fatal(err)
	}

	pending := engine.Pending()
	if len(pending) != 2 || pending[0].ID != early || pending[1].ID != late {
		t.Fatalf("expected [early late], got %+v", pending)
	}
	if pending[0].Context.Trigger != "scheduled" {
		t.Errorf("expected default trigger, got %q", pending[0].Context.Trigger)
	}
	if pending[1].Context.Trigger != "manual" {
		t.Errorf("expected explicit trigger kept, got %q", pending[1].Context.Trigger)
	}
	if engine.Statistics().Pending != 2 {
		t.Error("statistics must count pending sessions")
	}
}

func TestScheduleUnknownStrategy(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	_, err := newTestEngine(m, clock).Schedule(context.Background(), clock.Now(), "cramming", focused)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	engine := newTestEngine(m, clock)
	id, _ := engine.Schedule(context.Background(), clock.Now().Add(time.Hour), StrategyMaintenance, focused)

	if !engine.Cancel(id) {
		t.Error("expected pending session cancelled")
	}
	if engine.Cancel(id) {
		t.Error("second cancel must report false")
	}
	if len(engine.Pending()) != 0 {
		t.Error("expected nothing pending")
	}
}

func TestRunDue(t *testing.T) {
	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	m.Store(ctx, "recent note", 0, 0, FormationContext{})
	engine := newTestEngine(m, clock)

	engine.Schedule(ctx, clock.Now().Add(time.Hour), StrategyMaintenance, focused)
	engine.Schedule(ctx, clock.Now().Add(3*time.Hour), StrategyMaintenance, focused)

	if got := engine.RunDue(ctx); len(got) != 0 {
		t.Fatalf("nothing is due yet, ran %d", len(got))
	}

	clock.Advance(time.Hour)
	ran := engine.RunDue(ctx)
	if len(ran) != 1 {
		t.Fatalf("expected one due session, got %d", len(ran))
	}
	if ran[0].Context.Trigger != "manual" || ran[0].Strategy != StrategyMaintenance {
		t.Errorf("unexpected session: %+v", ran[0])
	}
	if len(engine.Pending()) != 1 {
		t.Errorf("expected one still pending, got %d", len(engine.Pending()))
	}
}

func TestRunDueDropsEmptySessions(t *testing.T) {
	capture := capitantesting.NewEventCapture()
	listener := capitan.Hook(RehearsalFailed, capture.Handler())
	defer listener.Close()

	m, clock := newTestMemory(DefaultMemoryConfig())
	ctx := context.Background()
	engine := newTestEngine(m, clock)
	id, _ := engine.Schedule(ctx, clock.Now(), StrategyContrastive, focused)

	if got := engine.RunDue(ctx); len(got) != 0 {
		t.Fatalf("expected no sessions, got %d", len(got))
	}
	if len(engine.Pending()) != 0 {
		t.Error("failed session must be dropped")
	}
	if !capture.WaitForCount(1, time.Second) {
		t.Fatal("expected RehearsalFailed event")
	}
	if got := getStringField(capture.Events()[0], FieldSessionID.Name()); got != id {
		t.Errorf("expected session id %q, got %q", id, got)
	}
}

func loopConfig() RehearsalConfig {
	cfg := DefaultRehearsalConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.Interval = 10 * time.Millisecond
	return cfg
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Empty memory: the loop polls and cycles without producing events.
	engine := NewRehearsalEngine(NewMemory(DefaultMemoryConfig()), loopConfig())
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := engine.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	engine.Stop()
	engine.Stop()

	// Restartable after Stop.
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	engine.Stop()
}

func TestStartStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	engine := NewRehearsalEngine(NewMemory(DefaultMemoryConfig()), loopConfig())
	ctx, cancel := context.WithCancel(context.Background())
	if err := engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	stopped := make(chan struct{})
	go func() {
		engine.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}

func TestStartAfterContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	engine := NewRehearsalEngine(NewMemory(DefaultMemoryConfig()), loopConfig())
	ctx, cancel := context.WithCancel(context.Background())
	if err := engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	// Once the cancelled loop has exited, Start succeeds without a Stop.
	deadline := time.Now().Add(time.Second)
	for {
		err := engine.Start(context.Background())
		if err == nil {
			break
		}
		if !errors.Is(err, ErrAlreadyRunning) {
			t.Fatalf("unexpected error: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("Start still reports a running loop after its context ended")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := engine.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected the new loop to be running, got %v", err)
	}
	engine.Stop()
}

func TestLoopRunsCycles(t *testing.T) {
	m := NewMemory(DefaultMemoryConfig())
	m.Store(context.Background(), "recent note", 0, 0, FormationContext{})
	engine := NewRehearsalEngine(m, loopConfig())

	if err := engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for len(engine.Sessions()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("loop never ran a cycle")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := engine.Sessions()[0].Context.Trigger; got != "cycle" {
		t.Errorf("expected cycle trigger, got %q", got)
	}
}
