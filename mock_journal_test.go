package syntra

import (
	"context"
	"sync"
)

// mockJournal implements Journal in memory for testing. When err is set
// every write fails with it.
type mockJournal struct {
	mu       sync.Mutex
	err      error
	alerts   []DriftAlert
	sessions []RehearsalSession
	traces   []MemoryTrace
	saves    int
	closed   bool
}

func (j *mockJournal) RecordDrift(_ context.Context, a DriftAlert) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.alerts = append(j.alerts, a)
	return nil
}

func (j *mockJournal) RecentDrift(_ context.Context, limit int) ([]DriftAlert, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return tail(j.alerts, limit), nil
}

func (j *mockJournal) RecordSession(_ context.Context, s RehearsalSession) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.sessions = append(j.sessions, s)
	return nil
}

func (j *mockJournal) RecentSessions(_ context.Context, limit int) ([]RehearsalSession, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return tail(j.sessions, limit), nil
}

func (j *mockJournal) SaveTraces(_ context.Context, traces []MemoryTrace) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.traces = append([]MemoryTrace(nil), traces...)
	j.saves++
	return nil
}

func (j *mockJournal) LoadTraces(_ context.Context) ([]MemoryTrace, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]MemoryTrace(nil), j.traces...), nil
}

func (j *mockJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func (j *mockJournal) sessionCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.sessions)
}

func tail[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return append([]T(nil), items...)
}
