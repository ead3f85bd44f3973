package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/finhr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Status represents the lifecycle status of a stored document
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusPosted
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Document errors
var (
	ErrDocumentPosted = shared.NewDomainError("DOCUMENT_POSTED", "Posted documents can no longer be edited")
)

// Document is the stored form of a header/lines document
type Document struct {
	shared.TenantAggregateRoot
	Number string
	Header Header
	Lines  []Line
	Status Status
}

// FromDraft builds the document to persist from an editor draft.
// Draft lines receive their permanent IDs here.
func FromDraft(tenantID uuid.UUID, draft Draft) (*Document, error) {
	number := strings.TrimSpace(draft.Number)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_NUMBER", "Document number cannot exceed 50 characters")
	}

	doc := &Document{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Number:              number,
		Header:              draft.Header,
		Status:              StatusDraft,
	}
	if draft.DocumentID != nil {
		doc.ID = *draft.DocumentID
		doc.Version = draft.Version
	}

	for _, l := range draft.Lines.Lines() {
		if l.ID == nil {
			id := uuid.New()
			l.ID = &id
		}
		l.Key = ""
		doc.Lines = append(doc.Lines, l)
	}
	return doc, nil
}

// ToDraft opens the document for editing
func (d *Document) ToDraft() (Draft, error) {
	if d.Status == StatusPosted {
		return Draft{}, ErrDocumentPosted
	}
	id := d.ID
	return Draft{
		DocumentID: &id,
		Number:     d.Number,
		Version:    d.Version,
		Header:     d.Header,
		Lines:      NewLineSet(d.Lines...),
	}, nil
}

// Post locks the document once it reconciles
func (d *Document) Post(result Result) error {
	if d.Status != StatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot post document in %s status", d.Status))
	}
	if !result.IsValid {
		return shared.NewDomainError("RECONCILIATION_BLOCKED", result.Message())
	}
	d.Status = StatusPosted
	d.Touch()
	return nil
}

// Repository is the fetchDocument/persistDocument collaborator
type Repository interface {
	// FindByIDForTenant loads a document with its lines
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)

	// FindAllForTenant lists documents (without lines) for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Document, int64, error)

	// ExistsByNumber checks if a document number is taken for a tenant
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error)

	// Create stores a new document and its lines atomically
	Create(ctx context.Context, doc *Document) error

	// Update replaces header and lines and applies line deletions atomically,
	// with optimistic locking on the version. The version is incremented on success.
	Update(ctx context.Context, doc *Document, deletions []LineDeletion) error

	// UpdateStatus stores a status change with optimistic locking
	UpdateStatus(ctx context.Context, doc *Document) error
}
