package syntra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// journalTime is fixed width so text timestamps sort chronologically.
const journalTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteJournal implements Journal on a local SQLite file.
type SQLiteJournal struct {
	db *sqlx.DB
}

// NewSQLiteJournal opens or creates a journal database at path.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One writer keeps WAL mode free of SQLITE_BUSY under concurrent passes.
	db.SetMaxOpenConns(1)

	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS drift_alerts (
		id         TEXT PRIMARY KEY,
		severity   TEXT NOT NULL,
		drift_type TEXT NOT NULL,
		magnitude  REAL NOT NULL,
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drift_created ON drift_alerts(created_at DESC);

	CREATE TABLE IF NOT EXISTS rehearsal_sessions (
		id            TEXT PRIMARY KEY,
		strategy      TEXT NOT NULL,
		effectiveness REAL NOT NULL,
		payload       TEXT NOT NULL,
		started_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON rehearsal_sessions(started_at DESC);

	CREATE TABLE IF NOT EXISTS memory_traces (
		id         TEXT PRIMARY KEY,
		generation TEXT NOT NULL,
		position   INTEGER NOT NULL,
		stream     TEXT NOT NULL,
		payload    TEXT NOT NULL
	);
	`
	_, err := j.db.Exec(schema)
	return err
}

// RecordDrift appends a drift alert.
func (j *SQLiteJournal) RecordDrift(ctx context.Context, alert DriftAlert) error {
	r, err := driftRecord(alert)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO drift_alerts (id, severity, drift_type, magnitude, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Severity, r.DriftType, r.Magnitude, r.Payload, r.CreatedAt.Format(journalTime))
	if err != nil {
		return fmt.Errorf("insert drift alert: %w", err)
	}
	return nil
}

// RecentDrift returns up to limit of the latest alerts, oldest first.
func (j *SQLiteJournal) RecentDrift(ctx context.Context, limit int) ([]DriftAlert, error) {
	var rows []DriftRecord
	err := j.db.SelectContext(ctx, &rows,
		`SELECT id, payload FROM drift_alerts ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query drift alerts: %w", err)
	}
	out := make([]DriftAlert, 0, len(rows))
	for i := range rows {
		a, err := rows[i].alert()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return reverse(out), nil
}

// RecordSession appends a completed rehearsal session.
func (j *SQLiteJournal) RecordSession(ctx context.Context, session RehearsalSession) error {
	r, err := sessionRecord(session)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO rehearsal_sessions (id, strategy, effectiveness, payload, started_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Strategy, r.Effectiveness, r.Payload, r.StartedAt.Format(journalTime))
	if err != nil {
		return fmt.Errorf("insert rehearsal session: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit of the latest sessions, oldest first.
func (j *SQLiteJournal) RecentSessions(ctx context.Context, limit int) ([]RehearsalSession, error) {
	var rows []SessionRecord
	err := j.db.SelectContext(ctx, &rows,
		`SELECT id, payload FROM rehearsal_sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query rehearsal sessions: %w", err)
	}
	out := make([]RehearsalSession, 0, len(rows))
	for i := range rows {
		s, err := rows[i].session()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return reverse(out), nil
}

// SaveTraces replaces the stored snapshot in one transaction.
func (j *SQLiteJournal) SaveTraces(ctx context.Context, traces []MemoryTrace) error {
	records, err := traceRecords(uuid.New().String(), traces)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_traces`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for _, r := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO memory_traces (id, generation, position, stream, payload) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.Generation, r.Position, r.Stream, r.Payload)
		if err != nil {
			return fmt.Errorf("insert trace %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadTraces returns the stored snapshot in its saved order.
func (j *SQLiteJournal) LoadTraces(ctx context.Context) ([]MemoryTrace, error) {
	var rows []TraceRecord
	err := j.db.SelectContext(ctx, &rows,
		`SELECT id, generation, position, stream, payload FROM memory_traces ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	out := make([]MemoryTrace, 0, len(rows))
	for i := range rows {
		t, err := rows[i].trace()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
