package taxonomy

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

var (
	// ErrUnavailable is wrapped by storage backends when a query cannot be
	// resolved or executed.
	ErrUnavailable = errors.New("term storage unavailable")

	// ErrInconsistent is returned in strict mode when the child lookup and
	// the descendant listing disagree, or the hierarchy loops back on itself.
	ErrInconsistent = errors.New("inconsistent term hierarchy")
)

// TermStorage is the read side of a vocabulary backend.
type TermStorage interface {
	// LoadTree returns every term of the vocabulary depth-first, with depth
	// relative to the vocabulary roots.
	LoadTree(vocabulary string) ([]Term, error)
	// LoadSubtree returns the descendants of rootID depth-first. The root's
	// direct children have depth 0.
	LoadSubtree(vocabulary, rootID string) ([]Term, error)
	// LoadChildren returns the ids of the direct children of id.
	LoadChildren(id string) ([]string, error)
}

// Option configures a TreeBuilder.
type Option func(*TreeBuilder)

// WithLogger sets the logger used for tolerated inconsistencies.
func WithLogger(l *slog.Logger) Option {
	return func(b *TreeBuilder) { b.logger = l }
}

// WithStrict turns dropped children and hierarchy cycles into ErrInconsistent.
func WithStrict() Option {
	return func(b *TreeBuilder) { b.strict = true }
}

// TreeBuilder loads vocabularies as nested trees. It keeps no state between
// calls; concurrent Load calls are safe when the storage is.
type TreeBuilder struct {
	storage TermStorage
	logger  *slog.Logger
	strict  bool
}

// NewTreeBuilder returns a builder reading from storage.
func NewTreeBuilder(storage TermStorage, opts ...Option) *TreeBuilder {
	b := &TreeBuilder{storage: storage, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load builds the full tree of a vocabulary. Every level of the result is
// ordered by ascending weight.
func (b *TreeBuilder) Load(vocabulary string) (*Tree, error) {
	records, err := b.storage.LoadTree(vocabulary)
	if err != nil {
		return nil, fmt.Errorf("load tree %q: %w", vocabulary, err)
	}

	tree := &Tree{}
	for _, record := range records {
		if err := b.buildTree(tree, record, vocabulary, nil); err != nil {
			return nil, err
		}
	}
	if tree.index != nil {
		tree.sortByWeight()
	}
	return tree, nil
}

// buildTree places record into tree if it sits at depth 0 of the listing it
// came from. Deeper records are reached through their own parent's subtree.
// path holds the ids of the ancestors being expanded.
func (b *TreeBuilder) buildTree(tree *Tree, record Term, vocabulary string, path []string) error {
	if record.Depth != 0 {
		return nil
	}
	node, err := b.buildNode(record, vocabulary, path)
	if err != nil {
		return err
	}
	tree.Put(node)
	return nil
}

// buildNode assembles record and its whole subtree. The returned node is
// complete: children attached and sorted.
func (b *TreeBuilder) buildNode(record Term, vocabulary string, path []string) (*TermNode, error) {
	node := &TermNode{Term: record}

	childIDs, err := b.storage.LoadChildren(record.ID)
	if err != nil {
		return nil, fmt.Errorf("load children of %q: %w", record.ID, err)
	}
	if len(childIDs) == 0 {
		return node, nil
	}

	descendants, err := b.storage.LoadSubtree(vocabulary, record.ID)
	if err != nil {
		return nil, fmt.Errorf("load subtree %q/%q: %w", vocabulary, record.ID, err)
	}
	byID := make(map[string][]Term, len(descendants))
	for _, d := range descendants {
		byID[d.ID] = append(byID[d.ID], d)
	}

	path = append(path, record.ID)
	for _, childID := range childIDs {
		if slices.Contains(path, childID) {
			if err := b.tolerate("hierarchy cycle", record.ID, childID); err != nil {
				return nil, err
			}
			continue
		}
		matches, ok := byID[childID]
		if !ok {
			if err := b.tolerate("child missing from subtree listing", record.ID, childID); err != nil {
				return nil, err
			}
			continue
		}
		for _, m := range matches {
			if err := b.buildTree(&node.Children, m, vocabulary, path); err != nil {
				return nil, err
			}
		}
	}

	if node.Children.index != nil {
		node.Children.sortByWeight()
	}
	return node, nil
}

// tolerate logs a skipped child, or fails in strict mode.
func (b *TreeBuilder) tolerate(reason, parentID, childID string) error {
	if b.strict {
		return fmt.Errorf("%w: %s: parent %q child %q", ErrInconsistent, reason, parentID, childID)
	}
	b.logger.Debug("taxonomy: skipping child", "reason", reason, "parent", parentID, "child", childID)
	return nil
}
