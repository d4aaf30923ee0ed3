package syntra

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zoobzio/astql/postgres"
	"github.com/zoobzio/soy"
)

// SoySchema creates the journal tables on postgres.
const SoySchema = `
CREATE TABLE IF NOT EXISTS drift_alerts (
	id         TEXT PRIMARY KEY,
	severity   TEXT NOT NULL,
	drift_type TEXT NOT NULL,
	magnitude  DOUBLE PRECISION NOT NULL,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS rehearsal_sessions (
	id            TEXT PRIMARY KEY,
	strategy      TEXT NOT NULL,
	effectiveness DOUBLE PRECISION NOT NULL,
	payload       TEXT NOT NULL,
	started_at    TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS memory_traces (
	id         TEXT PRIMARY KEY,
	generation TEXT NOT NULL,
	position   INTEGER NOT NULL,
	stream     TEXT NOT NULL,
	payload    TEXT NOT NULL
);
`

// SoyJournal implements Journal on postgres using soy.
type SoyJournal struct {
	alerts   *soy.Soy[DriftRecord]
	sessions *soy.Soy[SessionRecord]
	traces   *soy.Soy[TraceRecord]
	db       *sqlx.DB
}

// NewSoyJournal creates a soy-backed journal. Tables must exist; see
// Migrate.
func NewSoyJournal(db *sqlx.DB) (*SoyJournal, error) {
	renderer := postgres.New()

	alerts, err := soy.New[DriftRecord](db, "drift_alerts", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize drift_alerts table: %w", err)
	}

	sessions, err := soy.New[SessionRecord](db, "rehearsal_sessions", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rehearsal_sessions table: %w", err)
	}

	traces, err := soy.New[TraceRecord](db, "memory_traces", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory_traces table: %w", err)
	}

	return &SoyJournal{
		alerts:   alerts,
		sessions: sessions,
		traces:   traces,
		db:       db,
	}, nil
}

// Migrate creates the journal tables if they do not exist.
func (j *SoyJournal) Migrate(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, SoySchema); err != nil {
		return fmt.Errorf("failed to create journal tables: %w", err)
	}
	return nil
}

// RecordDrift appends a drift alert.
func (j *SoyJournal) RecordDrift(ctx context.Context, alert DriftAlert) error {
	r, err := driftRecord(alert)
	if err != nil {
		return err
	}
	if _, err := j.alerts.Insert().Exec(ctx, r); err != nil {
		return fmt.Errorf("failed to insert drift alert: %w", err)
	}
	return nil
}

// RecentDrift returns up to limit of the latest alerts, oldest first.
func (j *SoyJournal) RecentDrift(ctx context.Context, limit int) ([]DriftAlert, error) {
	rows, err := j.alerts.Query().
		OrderBy("created_at", "desc").
		Limit(limit).
		Exec(ctx, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to query drift alerts: %w", err)
	}
	out := make([]DriftAlert, 0, len(rows))
	for _, r := range rows {
		a, err := r.alert()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return reverse(out), nil
}

// RecordSession appends a completed rehearsal session.
func (j *SoyJournal) RecordSession(ctx context.Context, session RehearsalSession) error {
	r, err := sessionRecord(session)
	if err != nil {
		return err
	}
	if _, err := j.sessions.Insert().Exec(ctx, r); err != nil {
		return fmt.Errorf("failed to insert rehearsal session: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit of the latest sessions, oldest first.
func (j *SoyJournal) RecentSessions(ctx context.Context, limit int) ([]RehearsalSession, error) {
	rows, err := j.sessions.Query().
		OrderBy("started_at", "desc").
		Limit(limit).
		Exec(ctx, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to query rehearsal sessions: %w", err)
	}
	out := make([]RehearsalSession, 0, len(rows))
	for _, r := range rows {
		s, err := r.session()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return reverse(out), nil
}

// SaveTraces replaces the stored snapshot in one transaction. A failed
// save leaves the previous snapshot in place.
func (j *SoyJournal) SaveTraces(ctx context.Context, traces []MemoryTrace) error {
	generation := uuid.New().String()
	records, err := traceRecords(generation, traces)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = j.traces.Remove().
		Where("generation", "!=", "generation").
		ExecTx(ctx, tx, map[string]any{"generation": generation})
	if err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	for _, r := range records {
		if _, err := j.traces.Insert().ExecTx(ctx, tx, r); err != nil {
			return fmt.Errorf("failed to insert trace %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadTraces returns the stored snapshot in its saved order.
func (j *SoyJournal) LoadTraces(ctx context.Context) ([]MemoryTrace, error) {
	rows, err := j.traces.Query().
		OrderBy("position", "asc").
		Exec(ctx, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	out := make([]MemoryTrace, 0, len(rows))
	for _, r := range rows {
		t, err := r.trace()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (j *SoyJournal) Close() error {
	return j.db.Close()
}
