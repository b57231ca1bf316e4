package ingest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createDrupalDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "drupal.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, stmt := range []string{
		`CREATE TABLE taxonomy_vocabulary (vid INTEGER PRIMARY KEY, machine_name TEXT, name TEXT, description TEXT)`,
		`CREATE TABLE taxonomy_term_data (tid INTEGER PRIMARY KEY, vid INTEGER, name TEXT, description TEXT, weight INTEGER)`,
		`CREATE TABLE taxonomy_term_hierarchy (tid INTEGER, parent INTEGER, PRIMARY KEY (tid, parent))`,
		`INSERT INTO taxonomy_vocabulary VALUES (1, 'tags', 'Tags', NULL), (2, 'regions', 'Regions', 'Sales regions')`,
		`INSERT INTO taxonomy_term_data VALUES
			(10, 1, 'go', NULL, 0),
			(11, 2, 'Europe', '', 1),
			(12, 2, 'Asia', '', 0),
			(13, 2, 'France', 'FR', 0),
			(14, 2, 'Eurasia', '', 5)`,
		`INSERT INTO taxonomy_term_hierarchy VALUES (10, 0), (11, 0), (12, 0), (13, 0), (13, 11), (14, 11), (14, 12)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return dbPath
}

func TestReadDrupalSQLite(t *testing.T) {
	vocabs, err := ReadDrupalSQLite(context.Background(), createDrupalDB(t))
	require.NoError(t, err)
	require.Len(t, vocabs, 2)

	assert.Equal(t, "tags", vocabs[0].ID)
	require.Len(t, vocabs[0].Terms, 1)
	assert.Empty(t, vocabs[0].Terms[0].Parents)

	regions := vocabs[1]
	assert.Equal(t, "Sales regions", regions.Description)
	var ids []string
	for _, term := range regions.Terms {
		ids = append(ids, term.ID)
	}
	assert.Equal(t, []string{"12", "13", "11", "14"}, ids)
	assert.Empty(t, regions.Terms[0].Parents)
	// France is both a root and a child of Europe.
	assert.Equal(t, []string{"", "11"}, regions.Terms[1].Parents)
	assert.Equal(t, "FR", regions.Terms[1].Description)
	assert.Equal(t, []string{"11", "12"}, regions.Terms[3].Parents)
	assert.NoError(t, regions.Validate())
}

func TestReadDrupalSQLite_MissingTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	_, err := ReadDrupalSQLite(context.Background(), dbPath)
	assert.ErrorContains(t, err, "query vocabularies")
}
