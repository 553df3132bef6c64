package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a small operational log: session lifecycle transitions and
// driver error streaks. It is deliberately narrower than a
// time-series database — temperature readings stay ephemeral in the
// manager's ring buffer and are never persisted here.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) the SQLite-backed
// operational log at path.
func OpenStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: ping %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS session_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    elapsed_ms REAL NOT NULL,
    recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS driver_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id TEXT NOT NULL,
    message TEXT NOT NULL,
    consecutive_count INTEGER NOT NULL,
    recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_session_events_machine_id ON session_events(machine_id);
CREATE INDEX IF NOT EXISTS idx_driver_errors_machine_id ON driver_errors(machine_id);
`
	_, err := s.db.Exec(schema)
	return err
}

// RecordEvent logs a session lifecycle event (a roast event, or a
// state transition) for a connected machine.
func (s *Store) RecordEvent(ctx context.Context, machineID, eventType string, elapsedMS float64) error {
	const q = `INSERT INTO session_events (machine_id, event_type, elapsed_ms) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, machineID, eventType, elapsedMS)
	return err
}

// RecordDriverError logs a read/write failure and its running
// consecutive-error count.
func (s *Store) RecordDriverError(ctx context.Context, machineID, message string, consecutiveCount int) error {
	const q = `INSERT INTO driver_errors (machine_id, message, consecutive_count) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, machineID, message, consecutiveCount)
	return err
}

// EventRecord is one logged session event.
type EventRecord struct {
	MachineID  string
	EventType  string
	ElapsedMS  float64
	RecordedAt time.Time
}

// RecentEvents returns the most recent session events for a machine,
// newest first, capped at limit.
func (s *Store) RecentEvents(ctx context.Context, machineID string, limit int) ([]EventRecord, error) {
	const q = `
SELECT machine_id, event_type, elapsed_ms, recorded_at
FROM session_events
WHERE machine_id = ?
ORDER BY recorded_at DESC, id DESC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, q, machineID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.MachineID, &e.EventType, &e.ElapsedMS, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
