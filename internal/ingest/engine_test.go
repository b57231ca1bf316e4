package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/termtree/api"
	"github.com/agentic-research/termtree/internal/config"
	"github.com/agentic-research/termtree/internal/taxonomy"
	"github.com/agentic-research/termtree/internal/termstore"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestEngine_IngestJSON(t *testing.T) {
	store := termstore.NewMemoryStore()
	e := NewEngine(store, NewFetcher(config.S3{}), quietLogger())

	stats, err := e.Ingest(context.Background(), writeFile(t, "v.json", animalsJSON), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Vocabularies)
	assert.Equal(t, 3, stats.Terms)
	assert.Equal(t, int64(len(animalsJSON)), stats.Bytes)

	tree, err := taxonomy.NewTreeBuilder(store).Load("animals")
	require.NoError(t, err)
	assert.Equal(t, []taxonomy.Placement{
		{ID: "1", Depth: 0},
		{ID: "2", Parent: "1", Depth: 1},
	}, tree.Flatten())
}

func TestEngine_FormatOverrideAndSelector(t *testing.T) {
	store := termstore.NewMemoryStore()
	e := NewEngine(store, NewFetcher(config.S3{}), quietLogger())

	// No usable extension: the explicit format decides.
	p := writeFile(t, "export.txt", animalsJSON)
	stats, err := e.Ingest(context.Background(), p, Options{Format: FormatJSON, Selector: "$.vocabularies[1]"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Vocabularies)

	vocabs, err := store.Vocabularies()
	require.NoError(t, err)
	assert.Equal(t, []string{"colors"}, vocabs)

	_, err = e.Ingest(context.Background(), p, Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEngine_IngestHCLFromS3(t *testing.T) {
	src := `
vocabulary "tags" {
  term "go" { name = "Go" }
  term "generics" {
    name    = "Generics"
    parents = ["go"]
  }
}
`
	store := termstore.NewMemoryStore()
	fetcher := NewFetcher(config.S3{}).WithClient(fakeObjects{"bucket/tags.hcl": []byte(src)})
	e := NewEngine(store, fetcher, quietLogger())

	stats, err := e.Ingest(context.Background(), "s3://bucket/tags.hcl", Options{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Vocabularies: 1, Terms: 2, Bytes: int64(len(src)), Duration: stats.Duration}, stats)

	kids, err := store.LoadChildren("go")
	require.NoError(t, err)
	assert.Equal(t, []string{"generics"}, kids)
}

func TestEngine_IngestDrupal(t *testing.T) {
	store := termstore.NewMemoryStore()
	e := NewEngine(store, NewFetcher(config.S3{}), quietLogger())

	stats, err := e.Ingest(context.Background(), createDrupalDB(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Vocabularies)
	assert.Equal(t, 5, stats.Terms)

	tree, err := taxonomy.NewTreeBuilder(store).Load("regions")
	require.NoError(t, err)
	assert.Equal(t, []string{"tid_12", "tid_13", "tid_11"}, tree.Keys())
	europe, ok := tree.Get("11")
	require.True(t, ok)
	_, ok = europe.Children.Get("13")
	assert.True(t, ok, "France stays under Europe as well")
}

func TestEngine_IngestDrupalFromS3(t *testing.T) {
	data, err := os.ReadFile(createDrupalDB(t))
	require.NoError(t, err)

	store := termstore.NewMemoryStore()
	fetcher := NewFetcher(config.S3{}).WithClient(fakeObjects{"dumps/site.db": data})
	e := NewEngine(store, fetcher, quietLogger())

	stats, err := e.Ingest(context.Background(), "s3://dumps/site.db", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Vocabularies)
	assert.Equal(t, int64(len(data)), stats.Bytes)
}

type failingTarget struct{ imported []string }

func (f *failingTarget) Import(v api.Vocabulary) error {
	if v.ID == "colors" {
		return errors.New("disk full")
	}
	f.imported = append(f.imported, v.ID)
	return nil
}

func TestEngine_StopsAtFirstImportError(t *testing.T) {
	target := &failingTarget{}
	e := NewEngine(target, NewFetcher(config.S3{}), quietLogger())

	stats, err := e.Ingest(context.Background(), writeFile(t, "v.json", animalsJSON), Options{})
	require.ErrorContains(t, err, `"colors"`)
	assert.Equal(t, []string{"animals"}, target.imported)
	assert.Equal(t, 1, stats.Vocabularies)
}

func TestEngine_InvalidVocabularyRejected(t *testing.T) {
	store := termstore.NewMemoryStore()
	e := NewEngine(store, NewFetcher(config.S3{}), quietLogger())

	bad := `{"id": "v", "terms": [{"id": "a", "name": "A", "parents": ["ghost"]}]}`
	_, err := e.Ingest(context.Background(), writeFile(t, "bad.json", bad), Options{})
	assert.ErrorIs(t, err, api.ErrInvalidVocabulary)
}

func TestEngine_MissingSource(t *testing.T) {
	e := NewEngine(termstore.NewMemoryStore(), NewFetcher(config.S3{}), quietLogger())
	_, err := e.Ingest(context.Background(), filepath.Join(t.TempDir(), "nope.json"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = e.Ingest(context.Background(), filepath.Join(t.TempDir(), "nope.db"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
