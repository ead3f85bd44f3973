package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/finhr/backend/internal/domain/reference"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCatalogRepository implements reference.CatalogRepository using GORM
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// FetchCatalog returns the rows of one kind ordered by sort order, then label.
// With a parent key only that parent's rows and the global rows are returned.
func (r *GormCatalogRepository) FetchCatalog(ctx context.Context, filter reference.CatalogFilter) ([]reference.ReferenceRow, error) {
	if !filter.Kind.IsValid() {
		return nil, reference.ErrUnknownKind(filter.Kind)
	}

	query := r.db.WithContext(ctx).
		Model(&models.ReferenceRowModel{}).
		Where("tenant_id = ? AND kind = ?", filter.TenantID, string(filter.Kind))
	if filter.ParentKey != "" {
		query = query.Where("(parent_key = ? OR parent_key IS NULL)", filter.ParentKey)
	}

	var rows []models.ReferenceRowModel
	if err := query.Order("sort_order ASC, label ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch %s catalog: %w", filter.Kind, err)
	}

	out := make([]reference.ReferenceRow, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Save creates or replaces a reference row
func (r *GormCatalogRepository) Save(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind, row reference.ReferenceRow) error {
	if !kind.IsValid() {
		return reference.ErrUnknownKind(kind)
	}
	if row.ID == "" {
		return shared.NewDomainError("INVALID_INPUT", "Reference row id cannot be empty")
	}
	if row.ParentKey != nil && *row.ParentKey == row.ID {
		return shared.NewDomainError("INVALID_INPUT", "Reference row cannot be its own parent")
	}

	now := time.Now()
	model := models.ReferenceRowModelFromDomain(tenantID, kind, row)
	model.CreatedAt = now
	model.UpdatedAt = now

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "kind"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"parent_key", "code", "label", "sort_order", "updated_at"}),
		}).
		Create(model).Error
}

// Delete removes a reference row
func (r *GormCatalogRepository) Delete(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind, id string) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ? AND id = ?", tenantID, string(kind), id).
		Delete(&models.ReferenceRowModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormCatalogRepository implements reference.CatalogRepository
var _ reference.CatalogRepository = (*GormCatalogRepository)(nil)
