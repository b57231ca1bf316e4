package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/ohler55/ojg/jp"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/termtree/api"
)

// Format names an import file format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatHCL    Format = "hcl"
	FormatDrupal Format = "drupal" // SQLite copy of the Drupal taxonomy tables
)

// ErrUnknownFormat is returned when no decoder matches a source.
var ErrUnknownFormat = errors.New("unknown import format")

// DetectFormat picks a format from the extension of uri.
func DetectFormat(uri string) (Format, error) {
	switch strings.ToLower(path.Ext(uri)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatDrupal, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, uri)
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatHCL, FormatDrupal:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// DecodeJSON decodes the vocabularies selected by a JSONPath expression.
// Each selected value may be a vocabulary object, a document with a
// "vocabularies" array, or an array of either. An empty selector means "$".
func DecodeJSON(data []byte, selector string) ([]api.Vocabulary, error) {
	if selector == "" {
		selector = "$"
	}
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}

	var out []api.Vocabulary
	for _, match := range x.Get(root) {
		if err := collectVocabularies(match, &out); err != nil {
			return nil, fmt.Errorf("selector %s: %w", selector, err)
		}
	}
	return out, nil
}

func collectVocabularies(v any, out *[]api.Vocabulary) error {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if err := collectVocabularies(item, out); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		if nested, ok := val["vocabularies"]; ok {
			return collectVocabularies(nested, out)
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		var vocab api.Vocabulary
		if err := json.Unmarshal(raw, &vocab); err != nil {
			return fmt.Errorf("decode vocabulary: %w", err)
		}
		*out = append(*out, vocab)
		return nil
	default:
		return fmt.Errorf("selected %T, want object or array", v)
	}
}

// DecodeYAML decodes a document with a top-level "vocabularies" list, or a
// single vocabulary.
func DecodeYAML(data []byte) ([]api.Vocabulary, error) {
	var doc api.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if len(doc.Vocabularies) > 0 {
		return doc.Vocabularies, nil
	}
	var vocab api.Vocabulary
	if err := yaml.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if vocab.ID == "" {
		return nil, nil
	}
	return []api.Vocabulary{vocab}, nil
}

// DecodeHCL decodes vocabulary blocks:
//
//	vocabulary "animals" {
//	  term "1" { name = "Mammals" }
//	  term "2" {
//	    name    = "Cats"
//	    parents = ["1"]
//	  }
//	}
func DecodeHCL(data []byte, filename string) ([]api.Vocabulary, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	var doc api.Document
	diags = gohcl.DecodeBody(file.Body, nil, &doc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return doc.Vocabularies, nil
}
