package syntra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Journal persists drift alerts, rehearsal sessions and memory snapshots.
// In-memory state is authoritative; journal errors are reported through
// the JournalFailed signal and never fail the calling operation.
type Journal interface {
	// RecordDrift appends a drift alert.
	RecordDrift(ctx context.Context, alert DriftAlert) error
	// RecentDrift returns up to limit of the latest alerts, oldest first.
	RecentDrift(ctx context.Context, limit int) ([]DriftAlert, error)
	// RecordSession appends a completed rehearsal session.
	RecordSession(ctx context.Context, session RehearsalSession) error
	// RecentSessions returns up to limit of the latest sessions, oldest first.
	RecentSessions(ctx context.Context, limit int) ([]RehearsalSession, error)
	// SaveTraces replaces the stored memory snapshot.
	SaveTraces(ctx context.Context, traces []MemoryTrace) error
	// LoadTraces returns the stored snapshot in its saved order.
	LoadTraces(ctx context.Context) ([]MemoryTrace, error)
	// Close releases the underlying store.
	Close() error
}

// DriftRecord is the persisted form of a DriftAlert.
type DriftRecord struct {
	ID        string    `db:"id" type:"text" constraints:"primarykey"`
	Severity  string    `db:"severity" type:"text" constraints:"notnull"`
	DriftType string    `db:"drift_type" type:"text" constraints:"notnull"`
	Magnitude float64   `db:"magnitude" type:"double precision" constraints:"notnull"`
	Payload   string    `db:"payload" type:"text" constraints:"notnull"`
	CreatedAt time.Time `db:"created_at" type:"timestamp" constraints:"notnull"`
}

// SessionRecord is the persisted form of a RehearsalSession.
type SessionRecord struct {
	ID            string    `db:"id" type:"text" constraints:"primarykey"`
	Strategy      string    `db:"strategy" type:"text" constraints:"notnull"`
	Effectiveness float64   `db:"effectiveness" type:"double precision" constraints:"notnull"`
	Payload       string    `db:"payload" type:"text" constraints:"notnull"`
	StartedAt     time.Time `db:"started_at" type:"timestamp" constraints:"notnull"`
}

// TraceRecord is one trace of a persisted memory snapshot. Generation
// identifies the save that wrote it.
type TraceRecord struct {
	ID         string `db:"id" type:"text" constraints:"primarykey"`
	Generation string `db:"generation" type:"text" constraints:"notnull"`
	Position   int    `db:"position" type:"integer" constraints:"notnull"`
	Stream     string `db:"stream" type:"text" constraints:"notnull"`
	Payload    string `db:"payload" type:"text" constraints:"notnull"`
}

func driftRecord(a DriftAlert) (*DriftRecord, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode drift alert: %w", err)
	}
	return &DriftRecord{
		ID:        a.ID,
		Severity:  string(a.Severity),
		DriftType: string(a.DriftType),
		Magnitude: a.Magnitude,
		Payload:   string(payload),
		CreatedAt: a.Timestamp.UTC(),
	}, nil
}

func (r *DriftRecord) alert() (DriftAlert, error) {
	var a DriftAlert
	if err := json.Unmarshal([]byte(r.Payload), &a); err != nil {
		return DriftAlert{}, fmt.Errorf("decode drift alert %s: %w", r.ID, err)
	}
	return a, nil
}

func sessionRecord(s RehearsalSession) (*SessionRecord, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode rehearsal session: %w", err)
	}
	return &SessionRecord{
		ID:            s.ID,
		Strategy:      string(s.Strategy),
		Effectiveness: s.Effectiveness,
		Payload:       string(payload),
		StartedAt:     s.StartedAt.UTC(),
	}, nil
}

func (r *SessionRecord) session() (RehearsalSession, error) {
	var s RehearsalSession
	if err := json.Unmarshal([]byte(r.Payload), &s); err != nil {
		return RehearsalSession{}, fmt.Errorf("decode rehearsal session %s: %w", r.ID, err)
	}
	return s, nil
}

func traceRecords(generation string, traces []MemoryTrace) ([]*TraceRecord, error) {
	out := make([]*TraceRecord, len(traces))
	for i, t := range traces {
		payload, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("encode trace %s: %w", t.ID, err)
		}
		out[i] = &TraceRecord{
			ID:         t.ID,
			Generation: generation,
			Position:   i,
			Stream:     string(t.StreamType),
			Payload:    string(payload),
		}
	}
	return out, nil
}

func (r *TraceRecord) trace() (MemoryTrace, error) {
	var t MemoryTrace
	if err := json.Unmarshal([]byte(r.Payload), &t); err != nil {
		return MemoryTrace{}, fmt.Errorf("decode trace %s: %w", r.ID, err)
	}
	return t, nil
}

// reverse flips newest-first query results into oldest-first order.
func reverse[T any](s []T) []T {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}
