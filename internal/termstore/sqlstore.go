package termstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/termtree/api"
	"github.com/agentic-research/termtree/internal/taxonomy"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS terms (
		id TEXT PRIMARY KEY,
		vocabulary TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		weight DOUBLE PRECISION NOT NULL DEFAULT 0,
		attributes TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_terms_vocabulary ON terms(vocabulary)`,
	`CREATE TABLE IF NOT EXISTS term_hierarchy (
		id TEXT NOT NULL,
		parent TEXT NOT NULL,
		PRIMARY KEY (id, parent)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_term_hierarchy_parent ON term_hierarchy(parent)`,
}

const (
	selectVocabularyTerms = `
		SELECT t.id, t.name, t.description, t.weight, t.attributes, h.parent
		FROM terms t JOIN term_hierarchy h ON h.id = t.id
		WHERE t.vocabulary = ?
		ORDER BY t.id, h.parent`

	// UNION (not UNION ALL) stops the recursion on cyclic data.
	selectSubtreeTerms = `
		WITH RECURSIVE sub(id) AS (
			SELECT id FROM term_hierarchy WHERE parent = ?
			UNION
			SELECT h.id FROM term_hierarchy h JOIN sub ON h.parent = sub.id
		)
		SELECT t.id, t.name, t.description, t.weight, t.attributes, h.parent
		FROM terms t JOIN term_hierarchy h ON h.id = t.id
		WHERE t.vocabulary = ? AND t.id IN (SELECT id FROM sub)
		ORDER BY t.id, h.parent`

	selectChildren = `SELECT id FROM term_hierarchy WHERE parent = ? ORDER BY id`

	selectVocabularies = `SELECT DISTINCT vocabulary FROM terms ORDER BY vocabulary`
)

// SQLStore implements Store on database/sql. The same queries serve SQLite
// and Postgres; only placeholder syntax differs.
type SQLStore struct {
	db     *sql.DB
	driver string
	rebind func(query string) string
}

func newSQLStore(db *sql.DB, driver string, rebind func(string) string) *SQLStore {
	return &SQLStore{db: db, driver: driver, rebind: rebind}
}

// Driver returns the database/sql driver name backing the store.
func (s *SQLStore) Driver() string { return s.driver }

// DB exposes the underlying handle for tests and maintenance commands.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create schema: %w", taxonomy.ErrUnavailable, err)
		}
	}
	return nil
}

// LoadTree implements taxonomy.TermStorage.
func (s *SQLStore) LoadTree(vocabulary string) ([]taxonomy.Term, error) {
	h, err := s.queryHierarchy(vocabulary, s.rebind(selectVocabularyTerms), vocabulary)
	if err != nil {
		return nil, fmt.Errorf("%w: load tree %q: %w", taxonomy.ErrUnavailable, vocabulary, err)
	}
	return h.listing(rootParent), nil
}

// LoadSubtree implements taxonomy.TermStorage.
func (s *SQLStore) LoadSubtree(vocabulary, rootID string) ([]taxonomy.Term, error) {
	h, err := s.queryHierarchy(vocabulary, s.rebind(selectSubtreeTerms), rootID, vocabulary)
	if err != nil {
		return nil, fmt.Errorf("%w: load subtree %q/%q: %w", taxonomy.ErrUnavailable, vocabulary, rootID, err)
	}
	return h.listing(rootID), nil
}

func (s *SQLStore) queryHierarchy(vocabulary, query string, args ...any) (*hierarchy, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	h := newHierarchy()
	for rows.Next() {
		var (
			id, name, description, parent string
			weight                        float64
			attrs                         sql.NullString
		)
		if err := rows.Scan(&id, &name, &description, &weight, &attrs, &parent); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		t, seen := h.terms[id]
		if !seen {
			t = taxonomy.Term{
				ID:          id,
				Vocabulary:  vocabulary,
				Name:        name,
				Description: description,
				Weight:      weight,
			}
			if attrs.Valid && attrs.String != "" {
				if err := json.Unmarshal([]byte(attrs.String), &t.Attributes); err != nil {
					return nil, fmt.Errorf("decode attributes of %q: %w", id, err)
				}
			}
		}
		t.Parents = append(t.Parents, parent)
		h.terms[id] = t
		h.link(parent, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}
	for id, t := range h.terms {
		t.Parents = normalizeParents(t.Parents)
		h.terms[id] = t
	}
	return h, nil
}

// LoadChildren implements taxonomy.TermStorage.
func (s *SQLStore) LoadChildren(id string) ([]string, error) {
	rows, err := s.db.Query(s.rebind(selectChildren), id)
	if err != nil {
		return nil, fmt.Errorf("%w: load children of %q: %w", taxonomy.ErrUnavailable, id, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var ids []string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("%w: scan child of %q: %w", taxonomy.ErrUnavailable, id, err)
		}
		ids = append(ids, child)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate children of %q: %w", taxonomy.ErrUnavailable, id, err)
	}
	return ids, nil
}

// Vocabularies implements Store.
func (s *SQLStore) Vocabularies() ([]string, error) {
	rows, err := s.db.Query(selectVocabularies)
	if err != nil {
		return nil, fmt.Errorf("%w: list vocabularies: %w", taxonomy.ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan vocabulary: %w", taxonomy.ErrUnavailable, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Import implements Store. The vocabulary is replaced in one transaction.
func (s *SQLStore) Import(v api.Vocabulary) error {
	if err := v.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin import: %w", taxonomy.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }() // safe to ignore (no-op if committed)

	if _, err := tx.Exec(s.rebind(`DELETE FROM term_hierarchy WHERE id IN (SELECT id FROM terms WHERE vocabulary = ?)`), v.ID); err != nil {
		return fmt.Errorf("clear hierarchy of %q: %w", v.ID, err)
	}
	if _, err := tx.Exec(s.rebind(`DELETE FROM terms WHERE vocabulary = ?`), v.ID); err != nil {
		return fmt.Errorf("clear terms of %q: %w", v.ID, err)
	}

	termStmt, err := tx.Prepare(s.rebind(`INSERT INTO terms (id, vocabulary, name, description, weight, attributes) VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare terms insert: %w", err)
	}
	defer func() { _ = termStmt.Close() }() // safe to ignore

	ownerStmt, err := tx.Prepare(s.rebind(`SELECT vocabulary FROM terms WHERE id = ?`))
	if err != nil {
		return fmt.Errorf("prepare owner lookup: %w", err)
	}
	defer func() { _ = ownerStmt.Close() }() // safe to ignore

	linkStmt, err := tx.Prepare(s.rebind(`INSERT INTO term_hierarchy (id, parent) VALUES (?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare hierarchy insert: %w", err)
	}
	defer func() { _ = linkStmt.Close() }() // safe to ignore

	for _, at := range v.Terms {
		t := fromAPI(v.ID, at)
		var attrs sql.NullString
		if len(t.Attributes) > 0 {
			b, err := json.Marshal(t.Attributes)
			if err != nil {
				return fmt.Errorf("encode attributes of %q: %w", t.ID, err)
			}
			attrs = sql.NullString{String: string(b), Valid: true}
		}
		var owner string
		switch err := ownerStmt.QueryRow(t.ID).Scan(&owner); {
		case err == nil:
			return fmt.Errorf("%w: %q in %q", ErrConflict, t.ID, owner)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("look up owner of %q: %w", t.ID, err)
		}
		if _, err := termStmt.Exec(t.ID, v.ID, t.Name, t.Description, t.Weight, attrs); err != nil {
			return fmt.Errorf("insert term %q: %w", t.ID, err)
		}
		for _, p := range parentsOf(t) {
			if _, err := linkStmt.Exec(t.ID, p); err != nil {
				return fmt.Errorf("insert hierarchy %q -> %q: %w", p, t.ID, err)
			}
		}
	}
	return tx.Commit()
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// questionMarks leaves ? placeholders as they are (SQLite).
func questionMarks(query string) string { return query }

// dollarPlaceholders rewrites ? placeholders to $1, $2, ... (Postgres).
func dollarPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ Store = (*SQLStore)(nil)
