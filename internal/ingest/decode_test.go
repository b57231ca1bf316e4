package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/termtree/api"
)

const animalsJSON = `{
  "vocabularies": [
    {
      "id": "animals",
      "name": "Animals",
      "terms": [
        {"id": "1", "name": "Mammals", "weight": 2},
        {"id": "2", "name": "Cats", "parents": ["1"], "attributes": {"sound": "meow"}}
      ]
    },
    {"id": "colors", "terms": [{"id": "c1", "name": "Red"}]}
  ]
}`

func TestDecodeJSON(t *testing.T) {
	t.Run("document", func(t *testing.T) {
		vocabs, err := DecodeJSON([]byte(animalsJSON), "")
		require.NoError(t, err)
		require.Len(t, vocabs, 2)
		assert.Equal(t, "animals", vocabs[0].ID)
		assert.Equal(t, "Animals", vocabs[0].Name)
		assert.Equal(t, api.Term{
			ID:         "2",
			Name:       "Cats",
			Parents:    []string{"1"},
			Attributes: map[string]string{"sound": "meow"},
		}, vocabs[0].Terms[1])
		assert.Equal(t, float64(2), vocabs[0].Terms[0].Weight)
	})

	t.Run("selector picks one vocabulary", func(t *testing.T) {
		vocabs, err := DecodeJSON([]byte(animalsJSON), "$.vocabularies[1]")
		require.NoError(t, err)
		require.Len(t, vocabs, 1)
		assert.Equal(t, "colors", vocabs[0].ID)
	})

	t.Run("selector with filter", func(t *testing.T) {
		vocabs, err := DecodeJSON([]byte(animalsJSON), `$.vocabularies[?(@.id == 'animals')]`)
		require.NoError(t, err)
		require.Len(t, vocabs, 1)
		assert.Equal(t, "animals", vocabs[0].ID)
	})

	t.Run("nested under another key", func(t *testing.T) {
		data := `{"export": {"taxonomy": [{"id": "tags", "terms": [{"id": "t1", "name": "go"}]}]}}`
		vocabs, err := DecodeJSON([]byte(data), "$.export.taxonomy")
		require.NoError(t, err)
		require.Len(t, vocabs, 1)
		assert.Equal(t, "tags", vocabs[0].ID)
	})

	t.Run("bare array", func(t *testing.T) {
		vocabs, err := DecodeJSON([]byte(`[{"id": "a"}, {"id": "b"}]`), "$")
		require.NoError(t, err)
		assert.Len(t, vocabs, 2)
	})

	t.Run("no match", func(t *testing.T) {
		vocabs, err := DecodeJSON([]byte(animalsJSON), "$.missing")
		require.NoError(t, err)
		assert.Empty(t, vocabs)
	})

	t.Run("primitive selected", func(t *testing.T) {
		_, err := DecodeJSON([]byte(animalsJSON), "$.vocabularies[0].id")
		assert.Error(t, err)
	})

	t.Run("invalid selector", func(t *testing.T) {
		_, err := DecodeJSON([]byte(animalsJSON), "$[")
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := DecodeJSON([]byte(`{"vocabularies": [`), "")
		assert.Error(t, err)
	})
}

func TestDecodeYAML(t *testing.T) {
	t.Run("document", func(t *testing.T) {
		data := `
vocabularies:
  - id: animals
    terms:
      - id: "1"
        name: Mammals
      - id: "2"
        name: Cats
        weight: -1.5
        parents: ["1"]
`
		vocabs, err := DecodeYAML([]byte(data))
		require.NoError(t, err)
		require.Len(t, vocabs, 1)
		require.Len(t, vocabs[0].Terms, 2)
		assert.Equal(t, -1.5, vocabs[0].Terms[1].Weight)
		assert.Equal(t, []string{"1"}, vocabs[0].Terms[1].Parents)
	})

	t.Run("single vocabulary", func(t *testing.T) {
		vocabs, err := DecodeYAML([]byte("id: tags\nterms:\n  - id: t1\n    name: go\n"))
		require.NoError(t, err)
		require.Len(t, vocabs, 1)
		assert.Equal(t, "tags", vocabs[0].ID)
	})

	t.Run("empty", func(t *testing.T) {
		vocabs, err := DecodeYAML([]byte("# nothing here\n"))
		require.NoError(t, err)
		assert.Empty(t, vocabs)
	})
}

func TestDecodeHCL(t *testing.T) {
	src := `
vocabulary "animals" {
  name = "Animals"

  term "1" {
    name   = "Mammals"
    weight = 2
  }

  term "2" {
    name       = "Cats"
    parents    = ["1"]
    attributes = { sound = "meow" }
  }
}

vocabulary "colors" {
  term "c1" {
    name = "Red"
  }
}
`
	vocabs, err := DecodeHCL([]byte(src), "vocab.hcl")
	require.NoError(t, err)
	require.Len(t, vocabs, 2)

	animals := vocabs[0]
	assert.Equal(t, "animals", animals.ID)
	assert.Equal(t, "Animals", animals.Name)
	require.Len(t, animals.Terms, 2)
	assert.Equal(t, "1", animals.Terms[0].ID)
	assert.Equal(t, float64(2), animals.Terms[0].Weight)
	assert.Equal(t, []string{"1"}, animals.Terms[1].Parents)
	assert.Equal(t, map[string]string{"sound": "meow"}, animals.Terms[1].Attributes)
	assert.Equal(t, "colors", vocabs[1].ID)

	t.Run("syntax error", func(t *testing.T) {
		_, err := DecodeHCL([]byte(`vocabulary "x" {`), "broken.hcl")
		assert.ErrorContains(t, err, "broken.hcl")
	})

	t.Run("missing required name", func(t *testing.T) {
		_, err := DecodeHCL([]byte(`vocabulary "x" { term "1" {} }`), "x.hcl")
		assert.Error(t, err)
	})
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		uri  string
		want Format
	}{
		{"vocab.json", FormatJSON},
		{"s3://bucket/path/vocab.YAML", FormatYAML},
		{"vocab.yml", FormatYAML},
		{"file:///tmp/vocab.hcl", FormatHCL},
		{"drupal.db", FormatDrupal},
		{"drupal.sqlite", FormatDrupal},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := DetectFormat(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DetectFormat("vocab.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
