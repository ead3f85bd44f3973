package selection

import (
	"fmt"
	"sync"

	"github.com/finhr/backend/internal/domain/reference"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Session errors
var (
	ErrStaleFetch          = shared.NewDomainError("STALE_FETCH", "A newer catalog fetch superseded this one")
	ErrSessionClosed       = shared.NewDomainError("SESSION_CLOSED", "Selection session is closed")
	ErrHydrating           = shared.NewDomainError("HYDRATING", "Selections cannot change while the form is loading")
	ErrHydrationIncomplete = shared.NewDomainError("HYDRATION_INCOMPLETE", "Every level needs a catalog before loading can finish")
	ErrNotHydrating        = shared.NewDomainError("NOT_HYDRATING", "The form is not loading")
	ErrLevelNotFound       = shared.NewDomainError("LEVEL_NOT_FOUND", "Selection level not found")
)

// Ticket identifies one catalog fetch for a level. Only the most recent
// ticket of a level may apply its result.
type Ticket struct {
	Kind   reference.CatalogKind
	Parent string
	seq    uint64
}

// Change reports a selection that was cleared and must be prompted again
type Change struct {
	Kind     reference.CatalogKind
	Previous string
}

type level struct {
	kind       reference.CatalogKind
	parentKind reference.CatalogKind
	linked     bool // parent is itself a level of this session
	policy     reference.CatalogPolicy
	selector   *reference.Selector
	seq        uint64
	loaded     bool
	children   []*level
}

// LevelState is a snapshot of one level
type LevelState struct {
	Kind       reference.CatalogKind
	ParentKind reference.CatalogKind
	Parent     string
	Selection  string
	Loaded     bool
	Hydrating  bool
	Visible    []reference.ReferenceRow
}

// Session holds the cascade chain of one form, for example
// entity -> category -> sub-category. A parent change resets every level
// below it. All methods are safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	id        uuid.UUID
	tenantID  uuid.UUID
	levels    []*level // parents before children
	byKind    map[reference.CatalogKind]*level
	hydrating bool
	hydrated  bool
	closed    bool
}

// NewSession creates an empty session
func NewSession(tenantID uuid.UUID) *Session {
	return &Session{
		id:       uuid.New(),
		tenantID: tenantID,
		byKind:   make(map[reference.CatalogKind]*level),
	}
}

// ID returns the session id
func (s *Session) ID() uuid.UUID { return s.id }

// TenantID returns the owning tenant
func (s *Session) TenantID() uuid.UUID { return s.tenantID }

// Link adds a level. parent is the kind whose selection scopes this one;
// it is either a level linked earlier, or an outside value set with
// SetParent, or empty for a root level.
func (s *Session) Link(kind, parent reference.CatalogKind, policy reference.CatalogPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.hydrating || s.hydrated {
		return ErrHydrating
	}
	if !kind.IsValid() {
		return reference.ErrUnknownKind(kind)
	}
	if _, dup := s.byKind[kind]; dup {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Level %s is already linked", kind))
	}
	if parent == kind {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Level %s cannot be its own parent", kind))
	}

	l := &level{
		kind:       kind,
		parentKind: parent,
		policy:     policy,
		selector:   reference.NewSelector(policy, reference.EmptyCatalog(kind)),
	}
	if p, ok := s.byKind[parent]; ok {
		l.linked = true
		p.children = append(p.children, l)
	}
	s.levels = append(s.levels, l)
	s.byKind[kind] = l
	return nil
}

// BeginFetch issues a ticket for a catalog fetch of a level. The ticket
// carries the parent selection the fetch must be scoped to.
func (s *Session) BeginFetch(kind reference.CatalogKind) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.level(kind)
	if err != nil {
		return Ticket{}, err
	}
	l.seq++
	return Ticket{Kind: kind, Parent: l.selector.Parent(), seq: l.seq}, nil
}

// ApplyCatalog hands the rows of a completed fetch to the level. Results of
// superseded tickets are discarded with ErrStaleFetch; so is anything that
// arrives after Close.
func (s *Session) ApplyCatalog(t Ticket, rows []reference.ReferenceRow) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.level(t.Kind)
	if err != nil {
		return nil, err
	}
	if t.seq != l.seq {
		return nil, ErrStaleFetch
	}

	effect, err := l.selector.SetCatalog(reference.NewCatalog(t.Kind, rows))
	if err != nil {
		return nil, err
	}
	l.loaded = true
	return s.propagate(l, effect), nil
}

// Select sets the selection of a level and resets every level below it
// when the value changed.
func (s *Session) Select(kind reference.CatalogKind, value string) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.level(kind)
	if err != nil {
		return nil, err
	}
	if s.hydrating {
		return nil, ErrHydrating
	}

	previous := l.selector.Child()
	if err := l.selector.Select(value); err != nil {
		return nil, err
	}
	if previous == value {
		return nil, nil
	}
	var changes []Change
	for _, c := range l.children {
		changes = append(changes, s.resetFrom(c, value)...)
	}
	return changes, nil
}

// SetParent sets an outside parent value for a level whose parent is not
// part of the session.
func (s *Session) SetParent(kind reference.CatalogKind, parent string) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.level(kind)
	if err != nil {
		return nil, err
	}
	if s.hydrating {
		return nil, ErrHydrating
	}
	if l.linked {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Parent of %s is the %s level; select it there", kind, l.parentKind))
	}
	if l.selector.Parent() == parent {
		return nil, nil
	}
	return s.resetFrom(l, parent), nil
}

// Hydrate loads stored values into the levels (edit mode). The loaded
// selections survive catalog fetches until FinishHydration. values may also
// carry the outside parent of a level; without one the parent set earlier
// with SetParent is kept.
func (s *Session) Hydrate(values map[reference.CatalogKind]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.hydrating || s.hydrated {
		return shared.NewDomainError("INVALID_STATE", "Session has already been hydrated")
	}
	for kind := range values {
		if _, ok := s.byKind[kind]; !ok && !s.isOutsideParent(kind) {
			return ErrLevelNotFound.Withf("Level %s is not linked", kind)
		}
	}

	for _, l := range s.levels {
		parent, ok := values[l.parentKind]
		if !l.linked && !ok {
			parent = l.selector.Parent()
		}
		l.selector = reference.NewHydratingSelector(l.policy, l.selector.Catalog(), parent, values[l.kind])
	}
	s.hydrating = true
	s.hydrated = true
	return nil
}

// FinishHydration ends edit-mode loading once every level has a catalog.
// Loaded selections that are not visible are cleared now.
func (s *Session) FinishHydration() ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if !s.hydrating {
		return nil, ErrNotHydrating
	}
	for _, l := range s.levels {
		if !l.loaded {
			return nil, ErrHydrationIncomplete.Withf("Level %s has not received a catalog yet", l.kind)
		}
	}

	// Work on copies so that a failure leaves every level hydrating.
	saved := make([]*reference.Selector, len(s.levels))
	for i, l := range s.levels {
		saved[i] = l.selector
		staged := *l.selector
		l.selector = &staged
	}

	var changes []Change
	for _, l := range s.levels {
		effect, err := l.selector.CompleteHydration()
		if err != nil {
			for i, l := range s.levels {
				l.selector = saved[i]
			}
			return nil, err
		}
		changes = append(changes, s.propagate(l, effect)...)
	}
	s.hydrating = false
	return changes, nil
}

// Close discards the session; later fetch results are ignored
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// IsHydrating reports whether edit-mode loading is in progress
func (s *Session) IsHydrating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrating
}

// Kinds returns the linked kinds, parents first
func (s *Session) Kinds() []reference.CatalogKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]reference.CatalogKind, 0, len(s.levels))
	for _, l := range s.levels {
		kinds = append(kinds, l.kind)
	}
	return kinds
}

// Below returns the kinds scoped, directly or not, by the given level
func (s *Session) Below(kind reference.CatalogKind) []reference.CatalogKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byKind[kind]
	if !ok {
		return nil
	}
	var out []reference.CatalogKind
	var walk func(*level)
	walk = func(p *level) {
		for _, c := range p.children {
			out = append(out, c.kind)
			walk(c)
		}
	}
	walk(l)
	return out
}

// State returns a snapshot of every level
func (s *Session) State() []LevelState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LevelState, 0, len(s.levels))
	for _, l := range s.levels {
		visible, err := l.selector.Visible()
		if err != nil {
			visible = nil
		}
		out = append(out, LevelState{
			Kind:       l.kind,
			ParentKind: l.parentKind,
			Parent:     l.selector.Parent(),
			Selection:  l.selector.Child(),
			Loaded:     l.loaded,
			Hydrating:  l.selector.IsHydrating(),
			Visible:    visible,
		})
	}
	return out
}

// isOutsideParent reports whether kind scopes a level without being one
func (s *Session) isOutsideParent(kind reference.CatalogKind) bool {
	for _, l := range s.levels {
		if !l.linked && l.parentKind != "" && l.parentKind == kind {
			return true
		}
	}
	return false
}

func (s *Session) level(kind reference.CatalogKind) (*level, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	l, ok := s.byKind[kind]
	if !ok {
		return nil, ErrLevelNotFound.Withf("Level %s is not linked", kind)
	}
	return l, nil
}

// propagate turns a cleared selection into hard resets of the levels below
func (s *Session) propagate(l *level, effect reference.Effect) []Change {
	if !effect.Cleared {
		return nil
	}
	changes := []Change{{Kind: l.kind, Previous: effect.Previous}}
	for _, c := range l.children {
		changes = append(changes, s.resetFrom(c, "")...)
	}
	return changes
}

// resetFrom gives l a new parent value, which clears its selection, and
// walks down the chain. Already empty levels are reset without a Change.
func (s *Session) resetFrom(l *level, parent string) []Change {
	var changes []Change
	effect := l.selector.OnParentChanged(parent)
	if effect.Cleared {
		changes = append(changes, Change{Kind: l.kind, Previous: effect.Previous})
	}
	for _, c := range l.children {
		changes = append(changes, s.resetFrom(c, "")...)
	}
	return changes
}
