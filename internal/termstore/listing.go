// Package termstore provides the TermStorage backends: an in-memory store and
// a database/sql store for SQLite and Postgres.
package termstore

import (
	"cmp"
	"slices"

	"github.com/agentic-research/termtree/api"
	"github.com/agentic-research/termtree/internal/taxonomy"
)

// rootParent is the parent id recorded for vocabulary roots.
const rootParent = ""

// Store is a TermStorage that can also be listed, bulk-loaded and closed.
type Store interface {
	taxonomy.TermStorage
	// Vocabularies returns the ids of all stored vocabularies, sorted.
	Vocabularies() ([]string, error)
	// Import replaces the stored terms of v.ID with the terms of v.
	Import(v api.Vocabulary) error
	Close() error
}

// hierarchy is a resolved view of (part of) one vocabulary.
type hierarchy struct {
	terms    map[string]taxonomy.Term
	children map[string][]string // parent id -> child ids
}

func newHierarchy() *hierarchy {
	return &hierarchy{
		terms:    make(map[string]taxonomy.Term),
		children: make(map[string][]string),
	}
}

// link records id under parent once.
func (h *hierarchy) link(parent, id string) {
	if slices.Contains(h.children[parent], id) {
		return
	}
	h.children[parent] = append(h.children[parent], id)
}

// listing returns the descendants of rootID depth-first, the direct children
// at depth 0. rootID "" lists the whole vocabulary. Siblings are ordered by
// weight, then name, then id. A term with several parents appears under each
// of them; a term already on the current path is not revisited.
func (h *hierarchy) listing(rootID string) []taxonomy.Term {
	for parent := range h.children {
		slices.SortFunc(h.children[parent], h.compareSiblings)
	}
	var out []taxonomy.Term
	onPath := map[string]bool{rootID: true}
	var visit func(parent string, depth int)
	visit = func(parent string, depth int) {
		for _, id := range h.children[parent] {
			t, ok := h.terms[id]
			if !ok || onPath[id] {
				continue
			}
			t.Depth = depth
			out = append(out, t)
			onPath[id] = true
			visit(id, depth+1)
			delete(onPath, id)
		}
	}
	visit(rootID, 0)
	return out
}

func (h *hierarchy) compareSiblings(a, b string) int {
	ta, tb := h.terms[a], h.terms[b]
	if c := cmp.Compare(ta.Weight, tb.Weight); c != 0 {
		return c
	}
	if c := cmp.Compare(ta.Name, tb.Name); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

// fromAPI converts an imported term to its stored form.
func fromAPI(vocabulary string, t api.Term) taxonomy.Term {
	return taxonomy.Term{
		ID:          t.ID,
		Vocabulary:  vocabulary,
		Name:        t.Name,
		Description: t.Description,
		Weight:      t.Weight,
		Parents:     normalizeParents(t.Parents),
		Attributes:  t.Attributes,
	}
}

// normalizeParents drops repeated parent ids, keeping first occurrences.
// A list holding only rootParent collapses to nil.
func normalizeParents(parents []string) []string {
	var out []string
	for _, p := range parents {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	if len(out) == 1 && out[0] == rootParent {
		return nil
	}
	return out
}

// parentsOf returns the hierarchy parents of t; roots hang off rootParent.
// An explicit rootParent entry places t at the root as well as under its
// other parents.
func parentsOf(t taxonomy.Term) []string {
	if len(t.Parents) == 0 {
		return []string{rootParent}
	}
	return t.Parents
}
