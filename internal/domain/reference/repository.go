package reference

import (
	"context"

	"github.com/google/uuid"
)

// CatalogFilter scopes a catalog fetch. The tenant is always explicit.
type CatalogFilter struct {
	TenantID uuid.UUID
	Kind     CatalogKind
	// ParentKey restricts the fetch to one parent plus the global rows; empty fetches all rows
	ParentKey string
}

// CatalogRepository is the fetchCatalog collaborator. Implementations return
// rows ordered by sort order, then label.
type CatalogRepository interface {
	FetchCatalog(ctx context.Context, filter CatalogFilter) ([]ReferenceRow, error)
	Save(ctx context.Context, tenantID uuid.UUID, kind CatalogKind, row ReferenceRow) error
	Delete(ctx context.Context, tenantID uuid.UUID, kind CatalogKind, id string) error
}
