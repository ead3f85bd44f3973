package cache

import (
	"context"
	"sync"

	"github.com/finhr/backend/internal/domain/sequence"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

type sequenceKey struct {
	tenantID uuid.UUID
	scope    sequence.Scope
}

// InMemorySequenceStore implements sequence.Repository using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemorySequenceStore struct {
	mu     sync.Mutex
	states map[sequenceKey]sequence.State
}

// NewInMemorySequenceStore creates a new in-memory sequence store
func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{states: make(map[sequenceKey]sequence.State)}
}

// Fetch reads the state of a scope
func (s *InMemorySequenceStore) Fetch(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope) (sequence.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[sequenceKey{tenantID, scope}]
	if !ok {
		return sequence.State{}, shared.ErrNotFound
	}
	return state, nil
}

// Create stores the initial state of a new scope
func (s *InMemorySequenceStore) Create(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope, state sequence.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sequenceKey{tenantID, scope}
	if _, exists := s.states[key]; exists {
		return shared.ErrAlreadyExists
	}
	s.states[key] = state
	return nil
}

// CompareAndSwap stores next if the stored state still equals expected
func (s *InMemorySequenceStore) CompareAndSwap(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope, expected, next sequence.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sequenceKey{tenantID, scope}
	current, ok := s.states[key]
	if !ok {
		return shared.ErrNotFound
	}
	if current != expected {
		return sequence.ErrAllocatorConflict
	}
	s.states[key] = next
	return nil
}

// Close is a no-op
func (s *InMemorySequenceStore) Close() error {
	return nil
}

// Ensure InMemorySequenceStore implements sequence.Repository
var _ sequence.Repository = (*InMemorySequenceStore)(nil)
