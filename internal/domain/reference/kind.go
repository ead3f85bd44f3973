package reference

import (
	"fmt"

	"github.com/finhr/backend/internal/domain/shared"
)

// CatalogKind identifies a reference list used by the finance and HR forms
type CatalogKind string

const (
	KindEntity       CatalogKind = "entity"
	KindCategory     CatalogKind = "category"
	KindSubCategory  CatalogKind = "sub_category"
	KindFlow         CatalogKind = "flow"
	KindFlowNature   CatalogKind = "flow_nature"
	KindEmployee     CatalogKind = "employee"
	KindContract     CatalogKind = "contract"
	KindCounterparty CatalogKind = "counterparty"
)

// kindSpec declares how a kind is scoped. The policy is the explicit
// per-catalog declaration; nothing is inferred from the rows.
type kindSpec struct {
	parent CatalogKind
	policy CatalogPolicy
}

var kindSpecs = map[CatalogKind]kindSpec{
	KindEntity:       {policy: GlobalFallbackPolicy()},
	KindCategory:     {parent: KindEntity, policy: GlobalFallbackPolicy()},
	KindSubCategory:  {parent: KindCategory, policy: ScopedPolicy()},
	KindFlow:         {parent: KindEntity, policy: GlobalFallbackPolicy()},
	KindFlowNature:   {parent: KindFlow, policy: GlobalFallbackPolicy()},
	KindEmployee:     {parent: KindEntity, policy: ScopedPolicy()},
	KindContract:     {parent: KindEmployee, policy: ScopedPolicy()},
	KindCounterparty: {parent: KindEntity, policy: GlobalFallbackPolicy()},
}

// IsValid checks if the kind is a known catalog kind
func (k CatalogKind) IsValid() bool {
	_, ok := kindSpecs[k]
	return ok
}

// String returns the string representation of CatalogKind
func (k CatalogKind) String() string {
	return string(k)
}

// ParentKind returns the kind whose selection scopes this kind, or "" for root kinds
func (k CatalogKind) ParentKind() CatalogKind {
	return kindSpecs[k].parent
}

// DefaultPolicy returns the declared visibility policy for the kind
func (k CatalogKind) DefaultPolicy() (CatalogPolicy, error) {
	spec, ok := kindSpecs[k]
	if !ok {
		return CatalogPolicy{}, ErrUnknownKind(k)
	}
	return spec.policy, nil
}

// ParseCatalogKind parses and validates a kind name
func ParseCatalogKind(s string) (CatalogKind, error) {
	k := CatalogKind(s)
	if !k.IsValid() {
		return "", ErrUnknownKind(k)
	}
	return k, nil
}

// ErrUnknownKind builds the error returned for an unsupported catalog kind
func ErrUnknownKind(k CatalogKind) error {
	return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown catalog kind %q", string(k)))
}
