package termstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agentic-research/termtree/internal/taxonomy"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	postgresDriver = "pgx"
	// defaultPostgresDSN is used when no DSN is configured.
	defaultPostgresDSN = "postgres://localhost/termtree?sslmode=disable"
)

// OpenPostgres connects to Postgres, verifies the connection and applies the
// term schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open(postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %w", taxonomy.ErrUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("%w: ping postgres: %w", taxonomy.ErrUnavailable, err)
	}

	s := newSQLStore(db, postgresDriver, dollarPlaceholders)
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close() // ignore error
		return nil, err
	}
	return s, nil
}
