package shared

import (
	"time"

	"github.com/google/uuid"
)

// TenantAggregateRoot is embedded by aggregates owned by one tenant. Version
// is the optimistic lock: repositories update only when the stored version
// still matches and bump it on success.
type TenantAggregateRoot struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenantAggregateRoot starts a new aggregate at version 1
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	now := time.Now()
	return TenantAggregateRoot{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BelongsTo reports whether the aggregate is owned by the given tenant
func (a *TenantAggregateRoot) BelongsTo(tenantID uuid.UUID) bool {
	return a.TenantID == tenantID
}

// Touch stamps the aggregate as modified now
func (a *TenantAggregateRoot) Touch() {
	a.UpdatedAt = time.Now()
}

// IncrementVersion records a successful write
func (a *TenantAggregateRoot) IncrementVersion() {
	a.Version++
}
