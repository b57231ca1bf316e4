package termstore

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/termtree/api"
	"github.com/agentic-research/termtree/internal/taxonomy"
)

// ErrConflict is returned when an imported term id already belongs to
// another vocabulary.
var ErrConflict = errors.New("term id owned by another vocabulary")

// MemoryStore keeps terms in maps. Vocabulary membership is a roaring bitmap
// of internal term ids, so listing or dropping a vocabulary costs O(k) in its
// own size instead of a scan over every stored term.
type MemoryStore struct {
	mu       sync.RWMutex
	terms    map[string]taxonomy.Term // term id -> term (Depth unset)
	children map[string][]string      // parent id -> child ids

	vocabTerms  map[string]*roaring.Bitmap // vocabulary -> bitmap of internal ids
	termIntID   map[string]uint32          // term id -> internal id
	intToTermID []string                   // reverse: internal id -> term id
	nextIntID   uint32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		terms:      make(map[string]taxonomy.Term),
		children:   make(map[string][]string),
		vocabTerms: make(map[string]*roaring.Bitmap),
		termIntID:  make(map[string]uint32),
	}
}

// AddTerm stores a single term under its vocabulary. Roots have no parents.
func (s *MemoryStore) AddTerm(t taxonomy.Term) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTerm(t)
}

// addTerm must be called with s.mu held.
func (s *MemoryStore) addTerm(t taxonomy.Term) error {
	if existing, ok := s.terms[t.ID]; ok && existing.Vocabulary != t.Vocabulary {
		return fmt.Errorf("%w: %q in %q", ErrConflict, t.ID, existing.Vocabulary)
	}
	t.Depth = 0
	t.Parents = normalizeParents(t.Parents)
	s.terms[t.ID] = t
	for _, p := range parentsOf(t) {
		if !slices.Contains(s.children[p], t.ID) {
			s.children[p] = append(s.children[p], t.ID)
		}
	}

	intID, ok := s.termIntID[t.ID]
	if !ok {
		intID = s.nextIntID
		s.nextIntID++
		s.termIntID[t.ID] = intID
		for uint32(len(s.intToTermID)) <= intID {
			s.intToTermID = append(s.intToTermID, "")
		}
		s.intToTermID[intID] = t.ID
	}
	bm, exists := s.vocabTerms[t.Vocabulary]
	if !exists {
		bm = roaring.New()
		s.vocabTerms[t.Vocabulary] = bm
	}
	bm.Add(intID)
	return nil
}

// Import implements Store.
func (s *MemoryStore) Import(v api.Vocabulary) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range v.Terms {
		if existing, ok := s.terms[t.ID]; ok && existing.Vocabulary != v.ID {
			return fmt.Errorf("%w: %q in %q", ErrConflict, t.ID, existing.Vocabulary)
		}
	}
	s.deleteVocabulary(v.ID)
	for _, t := range v.Terms {
		if err := s.addTerm(fromAPI(v.ID, t)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteVocabulary removes every term of the vocabulary and the hierarchy
// links pointing at them.
func (s *MemoryStore) DeleteVocabulary(vocabulary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteVocabulary(vocabulary)
}

// deleteVocabulary must be called with s.mu held.
func (s *MemoryStore) deleteVocabulary(vocabulary string) {
	bm, ok := s.vocabTerms[vocabulary]
	if !ok {
		return
	}

	deleteSet := make(map[string]struct{}, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		intID := it.Next()
		if int(intID) >= len(s.intToTermID) {
			continue
		}
		id := s.intToTermID[intID]
		if id == "" {
			continue
		}
		deleteSet[id] = struct{}{}
		delete(s.terms, id)
		delete(s.children, id)
		delete(s.termIntID, id)
		s.intToTermID[intID] = ""
	}
	delete(s.vocabTerms, vocabulary)

	for parent, kids := range s.children {
		kept := kids[:0]
		for _, c := range kids {
			if _, del := deleteSet[c]; !del {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(s.children, parent)
		} else {
			s.children[parent] = kept
		}
	}
}

// Vocabularies implements Store.
func (s *MemoryStore) Vocabularies() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.vocabTerms))
	for v := range s.vocabTerms {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// LoadTree implements taxonomy.TermStorage.
func (s *MemoryStore) LoadTree(vocabulary string) ([]taxonomy.Term, error) {
	return s.LoadSubtree(vocabulary, rootParent)
}

// LoadSubtree implements taxonomy.TermStorage.
func (s *MemoryStore) LoadSubtree(vocabulary, rootID string) ([]taxonomy.Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bm, ok := s.vocabTerms[vocabulary]
	if !ok {
		return nil, nil
	}
	h := newHierarchy()
	it := bm.Iterator()
	for it.HasNext() {
		id := s.intToTermID[it.Next()]
		t := s.terms[id]
		t.Parents = slices.Clone(t.Parents)
		h.terms[id] = t
		for _, p := range parentsOf(t) {
			h.link(p, id)
		}
	}
	return h.listing(rootID), nil
}

// LoadChildren implements taxonomy.TermStorage.
func (s *MemoryStore) LoadChildren(id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.children[id]), nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
