package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/finhr/backend/internal/domain/sequence"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceRepository implements sequence.Repository using GORM.
// CompareAndSwap is a single conditional UPDATE, so concurrent allocators
// never both advance from the same counter.
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// Fetch returns the stored state of a scope
func (r *GormSequenceRepository) Fetch(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope) (sequence.State, error) {
	var model models.SequenceStateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND scope = ?", tenantID, string(scope)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sequence.State{}, shared.ErrNotFound
		}
		return sequence.State{}, err
	}
	return model.ToDomain(), nil
}

// Create stores the initial state of a new scope
func (r *GormSequenceRepository) Create(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope, state sequence.State) error {
	if err := state.Validate(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "scope"}},
			DoNothing: true,
		}).
		Create(models.SequenceStateModelFromDomain(tenantID, scope, state))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyExists
	}
	return nil
}

// CompareAndSwap stores next only if the stored state still equals expected
func (r *GormSequenceRepository) CompareAndSwap(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope, expected, next sequence.State) error {
	if err := next.Validate(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&models.SequenceStateModel{}).
		Where("tenant_id = ? AND scope = ? AND counter = ? AND prefix = ? AND width = ?",
			tenantID, string(scope), expected.Counter, expected.Prefix, expected.Width).
		Updates(map[string]any{
			"counter":    next.Counter,
			"prefix":     next.Prefix,
			"width":      next.Width,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.SequenceStateModel{}).
			Where("tenant_id = ? AND scope = ?", tenantID, string(scope)).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return sequence.ErrAllocatorConflict
	}
	return nil
}

// Ensure GormSequenceRepository implements sequence.Repository
var _ sequence.Repository = (*GormSequenceRepository)(nil)
