package sequence

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/finhr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Allocator errors
var (
	ErrInvalidAllocatorState = shared.NewDomainError("INVALID_ALLOCATOR_STATE", "Allocator state is invalid")
	ErrAllocatorConflict     = shared.NewDomainError("ALLOCATOR_CONFLICT", "Allocator counter was advanced by another caller")
)

// MaxWidth bounds the zero-padding width
const MaxWidth = 18

// State is the stored state of one code sequence (e.g. prefix "EMP", width 4)
type State struct {
	Prefix  string
	Counter int64
	Width   int
}

// Validate checks the state before it is used or stored
func (s State) Validate() error {
	if s.Counter < 0 {
		return shared.NewDomainError(ErrInvalidAllocatorState.Code, "Allocator counter cannot be negative")
	}
	if s.Width < 0 || s.Width > MaxWidth {
		return ErrInvalidAllocatorState.Withf("Allocator width must be between 0 and %d", MaxWidth)
	}
	if len(s.Prefix) > 20 {
		return shared.NewDomainError(ErrInvalidAllocatorState.Code, "Allocator prefix cannot exceed 20 characters")
	}
	return nil
}

// Format renders a counter value with the state's prefix and padding.
// Values wider than the padding are never truncated.
func (s State) Format(counter int64) string {
	digits := strconv.FormatInt(counter, 10)
	if pad := s.Width - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return s.Prefix + digits
}

// Next computes the next code and the advanced state. It performs no I/O
// and does not serialize concurrent callers; persisting the returned state
// atomically is the caller's job.
func Next(state State) (string, State, error) {
	if err := state.Validate(); err != nil {
		return "", state, err
	}
	if state.Counter == math.MaxInt64 {
		return "", state, ErrInvalidAllocatorState.Withf("Allocator %q is exhausted at %d", state.Prefix, state.Counter)
	}
	next := state
	next.Counter = state.Counter + 1
	return state.Format(next.Counter), next, nil
}

// Scope identifies a sequence within a tenant, e.g. "employee" or "document:ENT-01"
type Scope string

// Validate checks the scope key
func (s Scope) Validate() error {
	if strings.TrimSpace(string(s)) == "" {
		return shared.NewDomainError("INVALID_SCOPE", "Sequence scope cannot be empty")
	}
	if len(s) > 100 {
		return shared.NewDomainError("INVALID_SCOPE", "Sequence scope cannot exceed 100 characters")
	}
	return nil
}

// DocumentScope returns the numbering scope for documents of an entity
func DocumentScope(entityID string) Scope {
	if entityID == "" {
		return Scope("document")
	}
	return Scope("document:" + entityID)
}

// Repository is the fetchAllocatorState/persistAllocatorState collaborator.
// CompareAndSwap only stores next if the stored counter still equals
// expected.Counter, and returns ErrAllocatorConflict otherwise.
type Repository interface {
	// Fetch returns the stored state, or shared.ErrNotFound for an unknown scope
	Fetch(ctx context.Context, tenantID uuid.UUID, scope Scope) (State, error)

	// Create stores the initial state of a new scope; shared.ErrAlreadyExists if present
	Create(ctx context.Context, tenantID uuid.UUID, scope Scope, state State) error

	// CompareAndSwap persists next when the stored state still matches expected
	CompareAndSwap(ctx context.Context, tenantID uuid.UUID, scope Scope, expected, next State) error
}
