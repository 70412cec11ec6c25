// Package memory provides an in-memory implementation of the signal store.
package memory

import (
	"context"
	"sync"

	"github.com/stigmer/stigmer/pkg/signal"
	"github.com/stigmer/stigmer/pkg/storage"
)

// MemoryStore implements the storage.Store interface using an in-memory map.
// Intended for tests and ephemeral boards; nothing survives the process.
type MemoryStore struct {
	mu      sync.RWMutex
	signals map[string]*signal.Signal
}

// NewMemoryStore creates a new in-memory store instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals: make(map[string]*signal.Signal),
	}
}

// Append inserts a new signal.
func (m *MemoryStore) Append(ctx context.Context, sig *signal.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.signals[sig.ID]; exists {
		return &storage.DuplicateIDError{ID: sig.ID}
	}

	// Deep copy to avoid external modifications.
	m.signals[sig.ID] = sig.Clone()
	return nil
}

// Get retrieves a signal by id.
func (m *MemoryStore) Get(ctx context.Context, id string) (*signal.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sig, exists := m.signals[id]
	if !exists {
		return nil, &storage.NotFoundError{ID: id}
	}
	return sig.Clone(), nil
}

// Update applies the mutator to a copy of the stored signal and swaps the
// result in only if the mutator succeeds.
func (m *MemoryStore) Update(ctx context.Context, id string, mutate func(*signal.Signal) error) (*signal.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sig, exists := m.signals[id]
	if !exists {
		return nil, &storage.NotFoundError{ID: id}
	}

	updated := sig.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}

	m.signals[id] = updated
	return updated.Clone(), nil
}

// All returns every signal, including resolved and archived records.
func (m *MemoryStore) All(ctx context.Context) ([]*signal.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*signal.Signal, 0, len(m.signals))
	for _, sig := range m.signals {
		result = append(result, sig.Clone())
	}
	return result, nil
}

// Sweep applies the mutator to every signal in one pass. Changes become
// observable only after the whole pass succeeds.
func (m *MemoryStore) Sweep(ctx context.Context, mutate func(*signal.Signal) (bool, error)) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := make(map[string]*signal.Signal, len(m.signals))
	changed := 0
	for id, sig := range m.signals {
		working := sig.Clone()
		didChange, err := mutate(working)
		if err != nil {
			return 0, err
		}
		if didChange {
			changed++
		}
		updated[id] = working
	}

	m.signals = updated
	return changed, nil
}

// Close closes the store (no-op for memory storage).
func (m *MemoryStore) Close() error {
	return nil
}
