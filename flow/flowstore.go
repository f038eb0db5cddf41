package flow

import (
	"context"
	"sync"

	"github.com/chaingraph-labs/engine/chainerr"
)

// Store is the read-only collaborator the engine consumes to resolve a
// flowId into a Flow and its current version (spec §6.4). The real
// implementation — backed by the flow-authoring CRUD service — is out of
// scope (spec §1); this package ships an in-memory one so the engine is
// runnable standalone (SPEC_FULL.md §6.4).
type Store interface {
	GetFlow(ctx context.Context, flowID string) (*Flow, error)
	GetFlowVersion(ctx context.Context, flowID string) (int64, error)
}

// MemoryStore is a simple in-memory Store, also writable so tests and the
// demo CLI can register flows directly.
type MemoryStore struct {
	mu    sync.RWMutex
	flows map[string]*Flow
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flows: make(map[string]*Flow)}
}

// Put registers or replaces a flow.
func (s *MemoryStore) Put(f *Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[f.ID] = f
}

// GetFlow implements Store.
func (s *MemoryStore) GetFlow(_ context.Context, flowID string) (*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[flowID]
	if !ok {
		return nil, chainerr.New(chainerr.NotFound, "flow %s not found", flowID)
	}
	return f, nil
}

// GetFlowVersion implements Store.
func (s *MemoryStore) GetFlowVersion(ctx context.Context, flowID string) (int64, error) {
	f, err := s.GetFlow(ctx, flowID)
	if err != nil {
		return 0, err
	}
	return f.Metadata.Version, nil
}
