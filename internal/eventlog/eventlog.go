// Package eventlog is an operator-facing audit trail of admission outcomes
// and room lifecycle transitions, backed by an embedded SQLite database.
// It is purely diagnostic: unlike the Inventory Ledger, nothing here is
// ever read back to reconstruct running state, and the server does not
// persist across restarts.
//
// Migration design follows server/store/store.go: SQL statements live in
// the [migrations] slice, applied once each and tracked in schema_migrations.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var migrations = []string{
	// v1 — admission and room lifecycle events
	`CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		room_id    INTEGER NOT NULL,
		kind       TEXT NOT NULL,
		actor      TEXT NOT NULL DEFAULT '',
		detail     TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v2 — index for room-scoped queries
	`CREATE INDEX IF NOT EXISTS idx_events_room ON events(room_id)`,
	// v3 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// Kind enumerates the event categories recorded.
type Kind string

const (
	KindAdmitted         Kind = "admitted"
	KindRejected         Kind = "rejected"
	KindRoomSealed       Kind = "room_sealed"
	KindRoomDrained      Kind = "room_drained"
	KindPreStartForfeit  Kind = "pre_start_forfeit"
)

// Event is one recorded row.
type Event struct {
	ID        string `json:"id"`
	RoomID    uint64 `json:"room_id"`
	Kind      Kind   `json:"kind"`
	Actor     string `json:"actor"`
	Detail    string `json:"detail"`
	CreatedAt int64  `json:"created_at"`
}

// Log wraps the SQLite database.
type Log struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies pending
// migrations. Use ":memory:" for ephemeral in-process storage (tests).
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		slog.Warn("eventlog: busy_timeout", "err", err)
	}

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) migrate() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := l.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := l.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		slog.Debug("eventlog: applied migration", "version", v)
	}
	return nil
}

// Record inserts one event row, tagged with a fresh UUID.
func (l *Log) Record(ctx context.Context, roomID uint64, kind Kind, actor, detail string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO events(id, room_id, kind, actor, detail) VALUES(?,?,?,?,?)`,
		uuid.NewString(), roomID, string(kind), actor, detail,
	)
	return err
}

// Recent returns the most recent events, newest first, up to limit rows.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, room_id, kind, actor, detail, created_at FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var kind string
		if err := rows.Scan(&e.ID, &e.RoomID, &kind, &e.Actor, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ForRoom returns events for a single room, newest first, up to limit rows.
func (l *Log) ForRoom(ctx context.Context, roomID uint64, limit int) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, room_id, kind, actor, detail, created_at FROM events WHERE room_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		roomID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var kind string
		if err := rows.Scan(&e.ID, &e.RoomID, &kind, &e.Actor, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
