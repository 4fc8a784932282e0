// Package store persists the device catalog and minute samples in
// PostgreSQL. It is the only durable surface of the service; everything
// else reads it at most once, at startup.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Store wraps the sink database. All access goes through embedded,
// parameterized SQL.
type Store struct {
	db *sql.DB
}

// Open connects to the sink and validates connectivity early, so a
// misconfigured or unreachable sink fails startup instead of the first
// flush.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db config: %w", err)
	}
	cfg.Tracer = newQueryTracer(slog.Default())

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing connection. Tests use it to run against an
// in-memory database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for pool instrumentation.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
