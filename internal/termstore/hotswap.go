package termstore

import (
	"sync"

	"github.com/agentic-research/termtree/api"
	"github.com/agentic-research/termtree/internal/taxonomy"
)

// HotSwapStore is a thread-safe wrapper that allows swapping the underlying
// store while readers keep using the same handle.
type HotSwapStore struct {
	mu      sync.RWMutex
	current Store
}

func NewHotSwapStore(initial Store) *HotSwapStore {
	return &HotSwapStore{current: initial}
}

// Swap replaces the current store and returns the previous one. The caller
// owns the returned store and is responsible for closing it.
func (h *HotSwapStore) Swap(next Store) Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.current
	h.current = next
	return prev
}

// LoadTree delegates to the current store.
func (h *HotSwapStore) LoadTree(vocabulary string) ([]taxonomy.Term, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.LoadTree(vocabulary)
}

// LoadSubtree delegates to the current store.
func (h *HotSwapStore) LoadSubtree(vocabulary, rootID string) ([]taxonomy.Term, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.LoadSubtree(vocabulary, rootID)
}

// LoadChildren delegates to the current store.
func (h *HotSwapStore) LoadChildren(id string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.LoadChildren(id)
}

// Vocabularies delegates to the current store.
func (h *HotSwapStore) Vocabularies() ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Vocabularies()
}

// Import delegates to the current store.
func (h *HotSwapStore) Import(v api.Vocabulary) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Import(v)
}

// Close closes the current store.
func (h *HotSwapStore) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Close()
}

var _ Store = (*HotSwapStore)(nil)
