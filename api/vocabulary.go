// Package api defines the vocabulary documents termtree imports.
// The same types decode from JSON, YAML and HCL.
package api

import (
	"errors"
	"fmt"
)

// Document is the top level of an import file.
type Document struct {
	Vocabularies []Vocabulary `json:"vocabularies" yaml:"vocabularies" hcl:"vocabulary,block"`
}

// Vocabulary is a named collection of terms forming one or more hierarchies.
type Vocabulary struct {
	// ID is the machine name terms are stored under.
	ID          string `json:"id" yaml:"id" hcl:"id,label"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty" hcl:"name,optional"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" hcl:"description,optional"`
	Terms       []Term `json:"terms,omitempty" yaml:"terms,omitempty" hcl:"term,block"`
}

// Term is a single entry of a vocabulary.
type Term struct {
	ID          string  `json:"id" yaml:"id" hcl:"id,label"`
	Name        string  `json:"name" yaml:"name" hcl:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty" hcl:"description,optional"`
	Weight      float64 `json:"weight,omitempty" yaml:"weight,omitempty" hcl:"weight,optional"`
	// Parents lists parent term ids. Empty means the term is a root; an
	// empty id among other parents places the term at the root as well.
	Parents    []string          `json:"parents,omitempty" yaml:"parents,omitempty" hcl:"parents,optional"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" hcl:"attributes,optional"`
}

var ErrInvalidVocabulary = errors.New("invalid vocabulary")

// Validate checks that term ids are unique and every parent exists.
// Repeated parent ids are allowed; stores record each link once.
func (v Vocabulary) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidVocabulary)
	}
	seen := make(map[string]struct{}, len(v.Terms))
	for _, t := range v.Terms {
		if t.ID == "" {
			return fmt.Errorf("%w: %s: term without id", ErrInvalidVocabulary, v.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: %s: duplicate term %q", ErrInvalidVocabulary, v.ID, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	for _, t := range v.Terms {
		for _, p := range t.Parents {
			if p == "" {
				continue
			}
			if p == t.ID {
				return fmt.Errorf("%w: %s: term %q is its own parent", ErrInvalidVocabulary, v.ID, t.ID)
			}
			if _, ok := seen[p]; !ok {
				return fmt.Errorf("%w: %s: term %q has unknown parent %q", ErrInvalidVocabulary, v.ID, t.ID, p)
			}
		}
	}
	return nil
}
