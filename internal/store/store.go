// Package store persists service lifecycle events so operators can
// audit what the supervisor did and when. SQLite (CGO-free) is the
// default backend; PostgreSQL is available for shared deployments.
package store

import (
	"context"
	"fmt"
	"time"
)

type EventType string

const (
	EventStart     EventType = "start"
	EventStop      EventType = "stop"
	EventSweepKill EventType = "sweep_kill"
)

// Event is one supervisor action against one service.
type Event struct {
	ID         int64     `json:"id"`
	Service    string    `json:"service"`
	Role       string    `json:"role"`
	PID        int       `json:"pid"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Detail     string    `json:"detail,omitempty"`
}

type Store interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, ev Event) error
	Recent(ctx context.Context, service string, limit int) ([]Event, error)
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Type string `toml:"type" mapstructure:"type"` // "sqlite" or "postgres"; empty disables history
	Path string `toml:"path" mapstructure:"path"` // sqlite file path
	DSN  string `toml:"dsn" mapstructure:"dsn"`   // postgres connection string
}

// New opens the backend named by cfg.Type. An empty type yields
// (nil, nil): history disabled.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "sqlite":
		return NewSQLite(cfg.Path)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Type)
}
