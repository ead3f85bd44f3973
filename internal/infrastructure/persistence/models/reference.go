package models

import (
	"time"

	"github.com/finhr/backend/internal/domain/reference"
	"github.com/google/uuid"
)

// ReferenceRowModel is the persistence model for one row of a reference catalog.
// Rows of every kind share the table; (tenant_id, kind, id) is the key.
type ReferenceRowModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"type:varchar(32);primaryKey"`
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	ParentKey *string   `gorm:"type:varchar(64);index:idx_reference_rows_parent"`
	Code      string    `gorm:"type:varchar(50);not null;default:''"`
	Label     string    `gorm:"type:varchar(200);not null"`
	SortOrder int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReferenceRowModel) TableName() string {
	return "reference_rows"
}

// ToDomain converts the persistence model to a reference row
func (m *ReferenceRowModel) ToDomain() reference.ReferenceRow {
	row := reference.ReferenceRow{
		ID:        m.ID,
		Code:      m.Code,
		Label:     m.Label,
		SortOrder: m.SortOrder,
	}
	if m.ParentKey != nil {
		row.ParentKey = reference.ParentOf(*m.ParentKey)
	}
	return row
}

// FromDomain populates the persistence model from a reference row
func (m *ReferenceRowModel) FromDomain(tenantID uuid.UUID, kind reference.CatalogKind, row reference.ReferenceRow) {
	m.TenantID = tenantID
	m.Kind = string(kind)
	m.ID = row.ID
	m.ParentKey = nil
	if row.ParentKey != nil {
		m.ParentKey = reference.ParentOf(*row.ParentKey)
	}
	m.Code = row.Code
	m.Label = row.Label
	m.SortOrder = row.SortOrder
}

// ReferenceRowModelFromDomain creates a new persistence model from a reference row
func ReferenceRowModelFromDomain(tenantID uuid.UUID, kind reference.CatalogKind, row reference.ReferenceRow) *ReferenceRowModel {
	m := &ReferenceRowModel{}
	m.FromDomain(tenantID, kind, row)
	return m
}
