package reference

import "github.com/finhr/backend/internal/domain/shared"

// Selector errors
var (
	ErrSelectionNotVisible = shared.NewDomainError("SELECTION_NOT_VISIBLE", "Selected value is not available for the current parent")
)

// CascadeState is a read-only snapshot of a selector
type CascadeState struct {
	Kind            CatalogKind
	ParentSelection string
	ChildSelection  string
	IsHydrating     bool
}

// Effect tells the caller whether a transition cleared the child selection.
// A cleared selection means the user must be prompted again.
type Effect struct {
	Cleared  bool
	Previous string
}

func cleared(previous string) Effect {
	return Effect{Cleared: previous != "", Previous: previous}
}

// Selector keeps one child selection consistent with its parent selection.
// It is not safe for concurrent use; callers serialize access per form.
type Selector struct {
	policy    CatalogPolicy
	catalog   *Catalog
	parent    string
	child     string
	supplied  string
	hydrating bool
}

// NewSelector creates a selector for a fresh form (no hydration)
func NewSelector(policy CatalogPolicy, catalog *Catalog) *Selector {
	if catalog == nil {
		catalog = EmptyCatalog("")
	}
	return &Selector{policy: policy, catalog: catalog}
}

// NewHydratingSelector creates a selector for an existing record. The loaded
// child value is remembered as the externally supplied value and survives
// reconciliation until hydration completes.
func NewHydratingSelector(policy CatalogPolicy, catalog *Catalog, parent, child string) *Selector {
	s := NewSelector(policy, catalog)
	s.parent = parent
	s.child = child
	s.supplied = child
	s.hydrating = true
	return s
}

// State returns a snapshot of the selector
func (s *Selector) State() CascadeState {
	return CascadeState{
		Kind:            s.catalog.Kind(),
		ParentSelection: s.parent,
		ChildSelection:  s.child,
		IsHydrating:     s.hydrating,
	}
}

// Parent returns the current parent selection
func (s *Selector) Parent() string { return s.parent }

// Child returns the current child selection
func (s *Selector) Child() string { return s.child }

// IsHydrating reports whether the initial load is still in progress
func (s *Selector) IsHydrating() bool { return s.hydrating }

// Catalog returns the current child catalog snapshot
func (s *Selector) Catalog() *Catalog { return s.catalog }

// Policy returns the declared catalog policy
func (s *Selector) Policy() CatalogPolicy { return s.policy }

// Visible returns the children visible under the current parent
func (s *Selector) Visible() ([]ReferenceRow, error) {
	return ComputeVisible(s.catalog, s.parent, s.policy)
}

// SetCatalog replaces the child catalog with a newer fetch and reconciles the
// selection against it. On a policy error the selector is left unchanged.
func (s *Selector) SetCatalog(catalog *Catalog) (Effect, error) {
	if catalog == nil {
		catalog = EmptyCatalog(s.catalog.Kind())
	}
	visible, err := ComputeVisible(catalog, s.parent, s.policy)
	if err != nil {
		return Effect{}, err
	}
	s.catalog = catalog
	return s.reconcile(visible), nil
}

// OnParentChanged records a new parent and always clears the child.
// Parent changes are live user actions, so no hydration exception applies.
func (s *Selector) OnParentChanged(parent string) Effect {
	previous := s.child
	s.parent = parent
	s.child = ""
	return cleared(previous)
}

// Select sets the child selection. An empty value clears it.
func (s *Selector) Select(child string) error {
	if child == "" {
		s.child = ""
		return nil
	}
	visible, err := s.Visible()
	if err != nil {
		return err
	}
	for _, row := range visible {
		if row.ID == child {
			s.child = child
			return nil
		}
	}
	return ErrSelectionNotVisible.Withf("%s %q is not available for parent %q", s.catalog.Kind(), child, s.parent)
}

// CompleteHydration ends the initial load. It happens at most once; later
// calls are no-ops. The selection is reconciled without the hydration exception.
func (s *Selector) CompleteHydration() (Effect, error) {
	if !s.hydrating {
		return Effect{}, nil
	}
	visible, err := s.Visible()
	if err != nil {
		return Effect{}, err
	}
	s.hydrating = false
	return s.reconcile(visible), nil
}

func (s *Selector) reconcile(visible []ReferenceRow) Effect {
	if ReconcileSelection(visible, s.child, s.hydrating, s.supplied) == Keep {
		return Effect{}
	}
	previous := s.child
	s.child = ""
	return cleared(previous)
}
