package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres implements Store through the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("empty postgres dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS service_events(
			id BIGSERIAL PRIMARY KEY,
			service TEXT NOT NULL,
			role TEXT NOT NULL,
			pid INTEGER NOT NULL,
			event TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			detail TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_service_events_service ON service_events(service);`,
		`CREATE INDEX IF NOT EXISTS idx_service_events_occurred ON service_events(occurred_at);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	var detail any
	if ev.Detail != "" {
		detail = ev.Detail
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO service_events(service, role, pid, event, occurred_at, detail)
		VALUES($1, $2, $3, $4, $5, $6);`,
		ev.Service, ev.Role, ev.PID, string(ev.Type), ev.OccurredAt.UTC(), detail)
	return err
}

func (p *Postgres) Recent(ctx context.Context, service string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, service, role, pid, event, occurred_at, COALESCE(detail, '')
		FROM service_events
		WHERE service = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2;`, service, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (p *Postgres) Close() error { return p.db.Close() }
