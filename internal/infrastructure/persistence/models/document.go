package models

import (
	"time"

	"github.com/finhr/backend/internal/domain/document"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel is the persistence model for the Document aggregate root.
// The header amounts are stored as entered; they are never derived from the lines.
type DocumentModel struct {
	TenantAggregateModel
	Number         string              `gorm:"type:varchar(50);not null;uniqueIndex:idx_document_tenant_number,priority:2"`
	Status         string              `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	DocumentDate   time.Time           `gorm:"type:date"`
	EntityID       string              `gorm:"type:varchar(64);index"`
	CounterpartyID string              `gorm:"type:varchar(64)"`
	CategoryID     string              `gorm:"type:varchar(64)"`
	SubCategoryID  string              `gorm:"type:varchar(64)"`
	Description    string              `gorm:"type:text"`
	AmountExclTax  decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	TaxAmount      decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	AmountInclTax  decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	Lines          []DocumentLineModel `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document
func (m *DocumentModel) ToDomain() *document.Document {
	doc := &document.Document{
		Number: m.Number,
		Status: document.Status(m.Status),
		Header: document.Header{
			AmountExclTax:  m.AmountExclTax,
			TaxAmount:      m.TaxAmount,
			AmountInclTax:  m.AmountInclTax,
			Date:           m.DocumentDate,
			EntityID:       m.EntityID,
			CounterpartyID: m.CounterpartyID,
			CategoryID:     m.CategoryID,
			SubCategoryID:  m.SubCategoryID,
			Description:    m.Description,
		},
	}
	m.PopulateTenantAggregateRoot(&doc.TenantAggregateRoot)
	for i := range m.Lines {
		doc.Lines = append(doc.Lines, m.Lines[i].ToDomain())
	}
	return doc
}

// FromDomain populates the persistence model from a domain Document.
// Lines are numbered by their position in the document.
func (m *DocumentModel) FromDomain(d *document.Document) {
	m.FromDomainTenantAggregateRoot(d.TenantAggregateRoot)
	m.Number = d.Number
	m.Status = d.Status.String()
	m.DocumentDate = d.Header.Date
	m.EntityID = d.Header.EntityID
	m.CounterpartyID = d.Header.CounterpartyID
	m.CategoryID = d.Header.CategoryID
	m.SubCategoryID = d.Header.SubCategoryID
	m.Description = d.Header.Description
	m.AmountExclTax = d.Header.AmountExclTax
	m.TaxAmount = d.Header.TaxAmount
	m.AmountInclTax = d.Header.AmountInclTax

	m.Lines = make([]DocumentLineModel, 0, len(d.Lines))
	for i, l := range d.Lines {
		m.Lines = append(m.Lines, *DocumentLineModelFromDomain(d.TenantID, d.ID, i, l))
	}
}

// DocumentModelFromDomain creates a new persistence model from a domain Document
func DocumentModelFromDomain(d *document.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(d)
	return m
}

// DocumentLineModel is the persistence model for one document line
type DocumentLineModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	DocumentID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position      int             `gorm:"not null;default:0"`
	AmountExclTax decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	CategoryID    string          `gorm:"type:varchar(64)"`
	SubCategoryID string          `gorm:"type:varchar(64)"`
	Label         string          `gorm:"type:varchar(200)"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentLineModel) TableName() string {
	return "document_lines"
}

// ToDomain converts the persistence model to a domain Line
func (m *DocumentLineModel) ToDomain() document.Line {
	id := m.ID
	return document.Line{
		ID:            &id,
		AmountExclTax: m.AmountExclTax,
		TaxAmount:     m.TaxAmount,
		CategoryID:    m.CategoryID,
		SubCategoryID: m.SubCategoryID,
		Label:         m.Label,
	}
}

// DocumentLineModelFromDomain creates a new persistence model from a persisted domain Line
func DocumentLineModelFromDomain(tenantID, documentID uuid.UUID, position int, l document.Line) *DocumentLineModel {
	now := time.Now()
	m := &DocumentLineModel{
		TenantID:      tenantID,
		DocumentID:    documentID,
		Position:      position,
		AmountExclTax: l.AmountExclTax,
		TaxAmount:     l.TaxAmount,
		CategoryID:    l.CategoryID,
		SubCategoryID: l.SubCategoryID,
		Label:         l.Label,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if l.ID != nil {
		m.ID = *l.ID
	}
	return m
}

