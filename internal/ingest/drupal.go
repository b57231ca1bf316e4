package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/termtree/api"
)

const (
	selectDrupalVocabularies = `SELECT vid, machine_name, name, COALESCE(description, '') FROM taxonomy_vocabulary ORDER BY vid`
	selectDrupalTerms        = `SELECT tid, vid, name, COALESCE(description, ''), weight FROM taxonomy_term_data ORDER BY vid, weight, name, tid`
	selectDrupalHierarchy    = `SELECT tid, parent FROM taxonomy_term_hierarchy ORDER BY tid, parent`
)

// ReadDrupalSQLite reads every vocabulary from a SQLite database holding the
// Drupal taxonomy tables (taxonomy_vocabulary, taxonomy_term_data,
// taxonomy_term_hierarchy). Vocabularies are keyed by machine name. Parent 0
// marks a root term; on a term that also has other parents it becomes an
// empty parent id, so the term is listed at the root as well.
func ReadDrupalSQLite(ctx context.Context, dbPath string) ([]api.Vocabulary, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	var vocabs []api.Vocabulary
	byVID := make(map[int64]int)
	err = queryRows(ctx, db, selectDrupalVocabularies, func(rows *sql.Rows) error {
		var (
			vid int64
			v   api.Vocabulary
		)
		if err := rows.Scan(&vid, &v.ID, &v.Name, &v.Description); err != nil {
			return err
		}
		byVID[vid] = len(vocabs)
		vocabs = append(vocabs, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query vocabularies: %w", err)
	}

	parents := make(map[string][]string)
	err = queryRows(ctx, db, selectDrupalHierarchy, func(rows *sql.Rows) error {
		var tid, parent int64
		if err := rows.Scan(&tid, &parent); err != nil {
			return err
		}
		id := strconv.FormatInt(tid, 10)
		p := ""
		if parent != 0 {
			p = strconv.FormatInt(parent, 10)
		}
		parents[id] = append(parents[id], p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query hierarchy: %w", err)
	}

	err = queryRows(ctx, db, selectDrupalTerms, func(rows *sql.Rows) error {
		var (
			tid, vid int64
			t        api.Term
		)
		if err := rows.Scan(&tid, &vid, &t.Name, &t.Description, &t.Weight); err != nil {
			return err
		}
		i, ok := byVID[vid]
		if !ok {
			return fmt.Errorf("term %d references unknown vocabulary %d", tid, vid)
		}
		t.ID = strconv.FormatInt(tid, 10)
		if ps := parents[t.ID]; len(ps) != 1 || ps[0] != "" {
			t.Parents = ps
		}
		vocabs[i].Terms = append(vocabs[i].Terms, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}
	return vocabs, nil
}

func queryRows(ctx context.Context, db *sql.DB, query string, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
