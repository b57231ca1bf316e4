package termstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentic-research/termtree/internal/taxonomy"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) a SQLite term store at path.
func OpenSQLite(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite %s: %w", taxonomy.ErrUnavailable, path, err)
	}
	db.SetMaxOpenConns(4)

	s := newSQLStore(db, "sqlite", questionMarks)
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close() // ignore error
		return nil, err
	}
	return s, nil
}
