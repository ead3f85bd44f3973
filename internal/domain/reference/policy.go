package reference

import (
	"fmt"
	"strings"

	"github.com/finhr/backend/internal/domain/shared"
)

// GlobalVisibility declares whether rows without a parent key are shown
// alongside the rows of the selected parent.
type GlobalVisibility int

const (
	GlobalUndeclared GlobalVisibility = iota
	GlobalVisible
	GlobalHidden
)

// EmptyParentPolicy declares what a catalog shows while no parent is selected
type EmptyParentPolicy int

const (
	EmptyParentUndeclared EmptyParentPolicy = iota
	// EmptyParentNone forces the user to choose a parent first
	EmptyParentNone
	// EmptyParentGlobalOnly shows the unscoped rows only
	EmptyParentGlobalOnly
)

// CatalogPolicy is the explicit per-catalog visibility declaration.
// The zero value declares nothing and is rejected where a declaration is needed.
type CatalogPolicy struct {
	Global      GlobalVisibility
	EmptyParent EmptyParentPolicy
}

// Policy errors
var (
	ErrInvalidCatalogPolicy = shared.NewDomainError("INVALID_CATALOG_POLICY", "Catalog visibility policy is not declared")
)

// ScopedPolicy hides global rows and shows nothing until a parent is chosen
func ScopedPolicy() CatalogPolicy {
	return CatalogPolicy{Global: GlobalHidden, EmptyParent: EmptyParentNone}
}

// GlobalFallbackPolicy shows global rows next to the parent's rows, and alone when no parent is chosen
func GlobalFallbackPolicy() CatalogPolicy {
	return CatalogPolicy{Global: GlobalVisible, EmptyParent: EmptyParentGlobalOnly}
}

// ParsePolicy maps the names "scoped" and "global_fallback" to their presets
func ParsePolicy(name string) (CatalogPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "scoped":
		return ScopedPolicy(), nil
	case "global_fallback", "global-fallback":
		return GlobalFallbackPolicy(), nil
	default:
		return CatalogPolicy{}, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown catalog policy %q", name))
	}
}

// String returns a readable name for logs
func (p CatalogPolicy) String() string {
	switch p {
	case ScopedPolicy():
		return "scoped"
	case GlobalFallbackPolicy():
		return "global_fallback"
	}
	return fmt.Sprintf("policy(global=%d,empty_parent=%d)", p.Global, p.EmptyParent)
}

func (p CatalogPolicy) validate(catalog *Catalog, parent string) error {
	if p.EmptyParent == EmptyParentGlobalOnly && p.Global == GlobalHidden {
		return shared.NewDomainError(ErrInvalidCatalogPolicy.Code, "Global-only fallback conflicts with hidden global rows")
	}
	if p.Global == GlobalUndeclared && catalog.HasGlobalRows() {
		return ErrInvalidCatalogPolicy.Withf("Catalog %q contains unscoped rows but declares no global visibility", catalog.Kind())
	}
	if parent == "" && p.EmptyParent == EmptyParentUndeclared {
		return ErrInvalidCatalogPolicy.Withf("Catalog %q declares no behaviour for an empty parent selection", catalog.Kind())
	}
	return nil
}

// ComputeVisible returns the subset of the catalog visible under the given parent selection.
// Rows whose parent key matches no known parent are tolerated and simply never shown.
func ComputeVisible(catalog *Catalog, parent string, policy CatalogPolicy) ([]ReferenceRow, error) {
	if catalog == nil {
		catalog = EmptyCatalog("")
	}
	if err := policy.validate(catalog, parent); err != nil {
		return nil, err
	}

	visible := make([]ReferenceRow, 0, catalog.Len())
	if parent == "" {
		if policy.EmptyParent == EmptyParentNone {
			return visible, nil
		}
		for _, row := range catalog.rows {
			if row.IsGlobal() {
				visible = append(visible, row)
			}
		}
		return visible, nil
	}

	for _, row := range catalog.rows {
		if row.BelongsTo(parent) || (row.IsGlobal() && policy.Global == GlobalVisible) {
			visible = append(visible, row)
		}
	}
	return visible, nil
}

// Decision is the outcome of reconciling a child selection against its visible set
type Decision int

const (
	Keep Decision = iota
	Clear
)

// String returns the string representation of Decision
func (d Decision) String() string {
	if d == Clear {
		return "clear"
	}
	return "keep"
}

// ReconcileSelection decides whether the current child selection survives.
// While hydrating, the value the record was loaded with is kept even if the
// catalog has not caught up yet.
func ReconcileSelection(visible []ReferenceRow, child string, isHydrating bool, supplied string) Decision {
	if child == "" {
		return Keep
	}
	for _, row := range visible {
		if row.ID == child {
			return Keep
		}
	}
	if isHydrating && child == supplied {
		return Keep
	}
	return Clear
}
