package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finhr/backend/internal/domain/document"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements document.Repository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// FindByIDForTenant loads a document with its lines in position order
func (r *GormDocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*document.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists documents without their lines
func (r *GormDocumentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]document.Document, int64, error) {
	var total int64
	countQuery := r.db.WithContext(ctx).Model(&models.DocumentModel{}).Where("tenant_id = ?", tenantID)
	countQuery = r.applyFilterWithoutPagination(countQuery, filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Model(&models.DocumentModel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)
	query = query.Clauses(orderBy(filter.OrderBy, filter.OrderDir, documentSortFields, "created_at"))
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.DocumentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	docs := make([]document.Document, 0, len(rows))
	for i := range rows {
		docs = append(docs, *rows[i].ToDomain())
	}
	return docs, total, nil
}

// ExistsByNumber checks if a document number is taken for a tenant
func (r *GormDocumentRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("tenant_id = ? AND number = ?", tenantID, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create stores a new document and its lines in one transaction
func (r *GormDocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	model := models.DocumentModelFromDomain(doc)
	lines := model.Lines
	model.Lines = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.Create(&lines).Error
	})
}

// Update stores header and lines, then removes the deleted lines, all in one
// transaction. The update only applies to a draft document still at the
// caller's version; the version is incremented on success.
func (r *GormDocumentRepository) Update(ctx context.Context, doc *document.Document, deletions []document.LineDeletion) error {
	model := models.DocumentModelFromDomain(doc)
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.DocumentModel{}).
			Where("tenant_id = ? AND id = ? AND version = ? AND status = ?",
				doc.TenantID, doc.ID, doc.Version, document.StatusDraft.String()).
			Updates(map[string]any{
				"number":          model.Number,
				"document_date":   model.DocumentDate,
				"entity_id":       model.EntityID,
				"counterparty_id": model.CounterpartyID,
				"category_id":     model.CategoryID,
				"sub_category_id": model.SubCategoryID,
				"description":     model.Description,
				"amount_excl_tax": model.AmountExclTax,
				"tax_amount":      model.TaxAmount,
				"amount_incl_tax": model.AmountInclTax,
				"version":         doc.Version + 1,
				"updated_at":      now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.lockFailure(tx, doc)
		}

		if len(deletions) > 0 {
			ids := make([]uuid.UUID, 0, len(deletions))
			for _, d := range deletions {
				ids = append(ids, d.LineID)
			}
			if err := tx.Where("tenant_id = ? AND document_id = ? AND id IN ?", doc.TenantID, doc.ID, ids).
				Delete(&models.DocumentLineModel{}).Error; err != nil {
				return err
			}
		}

		if len(model.Lines) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"position", "amount_excl_tax", "tax_amount", "category_id", "sub_category_id", "label", "updated_at",
			}),
		}).Create(&model.Lines).Error
	})
	if err != nil {
		return err
	}

	doc.IncrementVersion()
	doc.UpdatedAt = now
	return nil
}

// UpdateStatus stores a status change with optimistic locking
func (r *GormDocumentRepository) UpdateStatus(ctx context.Context, doc *document.Document) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", doc.TenantID, doc.ID, doc.Version).
		Updates(map[string]any{
			"status":     doc.Status.String(),
			"version":    doc.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.DocumentModel{}).
			Where("tenant_id = ? AND id = ?", doc.TenantID, doc.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check document %s after status update: %w", doc.ID, err)
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	doc.IncrementVersion()
	doc.UpdatedAt = now
	return nil
}

// lockFailure explains why a versioned update matched no row
func (r *GormDocumentRepository) lockFailure(tx *gorm.DB, doc *document.Document) error {
	var current models.DocumentModel
	if err := tx.Select("status", "version").
		Where("tenant_id = ? AND id = ?", doc.TenantID, doc.ID).
		First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrNotFound
		}
		return err
	}
	if current.Status == document.StatusPosted.String() {
		return document.ErrDocumentPosted
	}
	return shared.ErrConcurrencyConflict
}

func (r *GormDocumentRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("(LOWER(number) LIKE ? OR LOWER(description) LIKE ?)", searchPattern, searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "entity_id":
			query = query.Where("entity_id = ?", value)
		case "date_from":
			query = query.Where("document_date >= ?", value)
		case "date_to":
			query = query.Where("document_date <= ?", value)
		}
	}
	return query
}

// Ensure GormDocumentRepository implements document.Repository
var _ document.Repository = (*GormDocumentRepository)(nil)
