// Package taxonomy assembles nested, weight-ordered term trees from the flat
// listings a TermStorage returns.
package taxonomy

import (
	"encoding/json"
	"slices"
)

// KeyPrefix is prepended to a term id to form its Tree key.
const KeyPrefix = "tid_"

// Term is one record of a flat, depth-annotated term listing.
// Only ID, Depth and Weight are read by the builder; everything else is
// payload carried through to the tree unchanged.
type Term struct {
	ID          string            `json:"id"`
	Vocabulary  string            `json:"vocabulary,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Weight      float64           `json:"weight"`
	Depth       int               `json:"depth"`
	Parents     []string          `json:"parents,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// TermNode is a term placed in a tree together with its ordered children.
type TermNode struct {
	Term
	Children Tree `json:"children"`
}

// Placement is one (id, parent, depth) triple of a flattened tree.
// Parent is empty for top-level nodes.
type Placement struct {
	ID     string
	Parent string
	Depth  int
}

// Tree is one level of siblings, keyed by term id.
// The zero value is an empty tree ready to use.
type Tree struct {
	nodes []*TermNode
	index map[string]int // term id -> position in nodes
}

// Key returns the stable map key for a term id.
func Key(id string) string {
	return KeyPrefix + id
}

// Put inserts n. A node whose id is already present replaces the existing
// entry in place, so the first occurrence fixes the position.
func (t *Tree) Put(n *TermNode) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[n.ID]; ok {
		t.nodes[i] = n
		return
	}
	t.index[n.ID] = len(t.nodes)
	t.nodes = append(t.nodes, n)
}

// Get returns the node with the given term id.
func (t *Tree) Get(id string) (*TermNode, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.nodes[i], true
}

// Len returns the number of siblings at this level.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Nodes returns the siblings in order. The slice is a copy.
func (t *Tree) Nodes() []*TermNode {
	return slices.Clone(t.nodes)
}

// Keys returns the "tid_"-prefixed keys in order.
func (t *Tree) Keys() []string {
	keys := make([]string, len(t.nodes))
	for i, n := range t.nodes {
		keys[i] = Key(n.ID)
	}
	return keys
}

// sortByWeight orders the level by ascending weight. Equal weights keep
// their insertion order.
func (t *Tree) sortByWeight() {
	slices.SortStableFunc(t.nodes, compareByWeight)
	for i, n := range t.nodes {
		t.index[n.ID] = i
	}
}

// compareByWeight is the single sibling comparator used at every level.
func compareByWeight(a, b *TermNode) int {
	switch {
	case a.Weight < b.Weight:
		return -1
	case a.Weight > b.Weight:
		return 1
	default:
		return 0
	}
}

// Walk visits every node depth-first in tree order. parent is nil for
// top-level nodes and depth is 0 there. Returning an error stops the walk.
func (t *Tree) Walk(fn func(n, parent *TermNode, depth int) error) error {
	return t.walk(nil, 0, fn)
}

func (t *Tree) walk(parent *TermNode, depth int, fn func(n, parent *TermNode, depth int) error) error {
	for _, n := range t.nodes {
		if err := fn(n, parent, depth); err != nil {
			return err
		}
		if err := n.Children.walk(n, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Flatten returns the (id, parent, depth) triple of every node in walk order.
func (t *Tree) Flatten() []Placement {
	var out []Placement
	_ = t.Walk(func(n, parent *TermNode, depth int) error {
		p := Placement{ID: n.ID, Depth: depth}
		if parent != nil {
			p.Parent = parent.ID
		}
		out = append(out, p)
		return nil
	})
	return out
}

// MarshalJSON encodes the level as an ordered array.
func (t Tree) MarshalJSON() ([]byte, error) {
	if t.nodes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.nodes)
}
