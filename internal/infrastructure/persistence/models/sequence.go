package models

import (
	"time"

	"github.com/finhr/backend/internal/domain/sequence"
	"github.com/google/uuid"
)

// SequenceStateModel is the persistence model for the state of one code sequence
type SequenceStateModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Scope     string    `gorm:"type:varchar(100);primaryKey"`
	Prefix    string    `gorm:"type:varchar(20);not null;default:''"`
	Counter   int64     `gorm:"not null;default:0"`
	Width     int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceStateModel) TableName() string {
	return "sequence_states"
}

// ToDomain converts the persistence model to an allocator state
func (m *SequenceStateModel) ToDomain() sequence.State {
	return sequence.State{
		Prefix:  m.Prefix,
		Counter: m.Counter,
		Width:   m.Width,
	}
}

// SequenceStateModelFromDomain creates a new persistence model from an allocator state
func SequenceStateModelFromDomain(tenantID uuid.UUID, scope sequence.Scope, state sequence.State) *SequenceStateModel {
	now := time.Now()
	return &SequenceStateModel{
		TenantID:  tenantID,
		Scope:     string(scope),
		Prefix:    state.Prefix,
		Counter:   state.Counter,
		Width:     state.Width,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
