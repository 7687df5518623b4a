package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite implements Store on modernc.org/sqlite (no CGO). Path is a
// filesystem location; ":memory:" works for tests.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// short concurrent writers (cli + serve) hit SQLITE_BUSY otherwise
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	return &SQLite{db: db}, nil
}

func (s *SQLite) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS service_events(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service TEXT NOT NULL,
			role TEXT NOT NULL,
			pid INTEGER NOT NULL,
			event TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			detail TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_service_events_service ON service_events(service);`,
		`CREATE INDEX IF NOT EXISTS idx_service_events_occurred ON service_events(occurred_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Append(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	var detail any
	if ev.Detail != "" {
		detail = ev.Detail
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_events(service, role, pid, event, occurred_at, detail)
		VALUES(?, ?, ?, ?, ?, ?);`,
		ev.Service, ev.Role, ev.PID, string(ev.Type), ev.OccurredAt.UTC(), detail)
	return err
}

func (s *SQLite) Recent(ctx context.Context, service string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, service, role, pid, event, occurred_at, COALESCE(detail, '')
		FROM service_events
		WHERE service = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?;`, service, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (s *SQLite) Close() error { return s.db.Close() }

func scanEvents(rows *sql.Rows) ([]Event, error) {
	out := make([]Event, 0)
	for rows.Next() {
		var ev Event
		var typ string
		if err := rows.Scan(&ev.ID, &ev.Service, &ev.Role, &ev.PID, &typ, &ev.OccurredAt, &ev.Detail); err != nil {
			return nil, err
		}
		ev.Type = EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}
