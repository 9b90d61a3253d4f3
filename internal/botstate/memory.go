package botstate

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps bot states in a mutex-guarded map. A process restart
// drops all overrides, falling back to default-active for every conversation;
// that is the accepted failure mode for this store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func memoryKey(tenantID, key string) string {
	return tenantID + "|" + key
}

// Get returns the stored state, or the active default for unknown keys.
func (s *MemoryStore) Get(_ context.Context, tenantID, key string) (State, error) {
	s.mu.RLock()
	state, ok := s.states[memoryKey(tenantID, key)]
	s.mu.RUnlock()
	if !ok {
		return defaultState(tenantID, key), nil
	}
	return state, nil
}

// SetActive writes the flag, last write wins.
func (s *MemoryStore) SetActive(_ context.Context, tenantID, key string, active bool, meta Metadata) error {
	s.mu.Lock()
	s.states[memoryKey(tenantID, key)] = State{
		TenantID:  tenantID,
		Key:       key,
		Active:    active,
		Reason:    meta.Reason,
		Source:    meta.Source,
		UpdatedAt: time.Now(),
	}
	s.mu.Unlock()
	return nil
}

// Reset removes the override so the key falls back to default-active.
func (s *MemoryStore) Reset(_ context.Context, tenantID, key string) error {
	s.mu.Lock()
	delete(s.states, memoryKey(tenantID, key))
	s.mu.Unlock()
	return nil
}
