package document

import (
	"context"
	"fmt"

	"github.com/finhr/backend/internal/domain/document"
	"github.com/finhr/backend/internal/domain/sequence"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CodeAllocator hands out document numbers. It is satisfied by the sequence CodeService.
type CodeAllocator interface {
	Allocate(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope) (string, error)
}

// Metrics records document save activity. It is satisfied by telemetry.EditorMetrics.
type Metrics interface {
	RecordDocumentSaved(ctx context.Context, tenantID uuid.UUID)
	RecordSaveBlocked(ctx context.Context, tenantID uuid.UUID, reason string)
}

type noopMetrics struct{}

func (noopMetrics) RecordDocumentSaved(context.Context, uuid.UUID)       {}
func (noopMetrics) RecordSaveBlocked(context.Context, uuid.UUID, string) {}

// DocumentService loads, reconciles and saves header/lines documents
type DocumentService struct {
	repo      document.Repository
	codes     CodeAllocator
	tolerance decimal.Decimal
	metrics   Metrics
	logger    *zap.Logger
}

// NewDocumentService creates a new DocumentService. A zero tolerance selects the default.
func NewDocumentService(repo document.Repository, codes CodeAllocator, tolerance decimal.Decimal, metrics Metrics, logger *zap.Logger) *DocumentService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:      repo,
		codes:     codes,
		tolerance: document.EffectiveTolerance(tolerance),
		metrics:   metrics,
		logger:    logger,
	}
}

// Tolerance returns the reconciliation tolerance in use
func (s *DocumentService) Tolerance() decimal.Decimal {
	return s.tolerance
}

// NewDraft returns an empty draft for a new document
func (s *DocumentService) NewDraft() document.Draft {
	return document.NewDraft()
}

// Load fetches a stored document and opens it as a draft
func (s *DocumentService) Load(ctx context.Context, tenantID, id uuid.UUID) (document.Draft, error) {
	doc, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return document.Draft{}, err
	}
	return doc.ToDraft()
}

// Get returns a stored document with its lines
func (s *DocumentService) Get(ctx context.Context, tenantID, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

// List returns stored documents for a tenant
func (s *DocumentService) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]DocumentListResponse, int64, error) {
	domainFilter := shared.DefaultFilter()
	domainFilter.Search = filter.Search
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}
	if filter.EntityID != "" {
		domainFilter.Filters["entity_id"] = filter.EntityID
	}
	if filter.Page > 0 && filter.PageSize > 0 {
		domainFilter.Page = filter.Page
		domainFilter.PageSize = filter.PageSize
	}

	docs, total, err := s.repo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DocumentListResponse, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentListResponse(&docs[i]))
	}
	return out, total, nil
}

// Mutate applies a line mutation; the header passes through untouched
func (s *DocumentService) Mutate(draft document.Draft, mutation document.LineMutation) (document.Draft, *document.LineDeletion, error) {
	return document.ApplyLineMutation(draft, mutation)
}

// Evaluate reconciles a draft with the configured tolerance
func (s *DocumentService) Evaluate(draft document.Draft) document.Result {
	return draft.Evaluate(s.tolerance)
}

// Warnings returns the non-blocking findings for a draft
func (s *DocumentService) Warnings(draft document.Draft) []document.Warning {
	return document.CheckTaxConsistency(draft.Header, s.tolerance)
}

// Save persists a draft if, and only if, it reconciles. A blocked save
// returns an outcome with Saved=false and touches nothing. On success the
// returned draft reflects the stored document (permanent line IDs, new
// version, no pending deletions). Persistence errors are returned unchanged
// and the caller's draft stays as it was.
func (s *DocumentService) Save(ctx context.Context, tenantID uuid.UUID, draft document.Draft) (*SaveOutcome, document.Draft, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "save",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrLineCount, draft.Lines.Len()),
	)
	defer span.End()

	outcome, saved, err := s.save(ctx, tenantID, draft)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, draft, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrBlocked, !outcome.Saved)
	if !outcome.Saved {
		telemetry.SetAttributes(span, telemetry.SpanAttrReason, outcome.Evaluation.Reason)
	}
	return outcome, saved, nil
}

func (s *DocumentService) save(ctx context.Context, tenantID uuid.UUID, draft document.Draft) (*SaveOutcome, document.Draft, error) {
	if err := draft.CheckAmounts(); err != nil {
		return nil, draft, err
	}
	result := s.Evaluate(draft)
	outcome := &SaveOutcome{
		Evaluation: ToEvaluationResponse(result),
		Warnings:   toWarningResponses(s.Warnings(draft)),
	}

	if !result.IsValid {
		s.metrics.RecordSaveBlocked(ctx, tenantID, string(result.Reason))
		s.logger.Info("document save blocked",
			zap.String("tenant_id", tenantID.String()),
			zap.String("reason", string(result.Reason)),
			zap.String("deviation", result.Deviation.StringFixed(2)),
		)
		return outcome, draft, nil
	}

	toStore := draft
	if toStore.IsNew() && toStore.Number == "" {
		number, err := s.codes.Allocate(ctx, tenantID, sequence.DocumentScope(draft.Header.EntityID))
		if err != nil {
			return nil, draft, err
		}
		toStore.Number = number
	}

	doc, err := document.FromDraft(tenantID, toStore)
	if err != nil {
		return nil, draft, err
	}

	if toStore.IsNew() {
		exists, err := s.repo.ExistsByNumber(ctx, tenantID, doc.Number)
		if err != nil {
			return nil, draft, err
		}
		if exists {
			return nil, draft, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Document number %s is already used", doc.Number))
		}
		if err := s.repo.Create(ctx, doc); err != nil {
			return nil, draft, err
		}
	} else {
		if err := s.repo.Update(ctx, doc, toStore.Deletions); err != nil {
			return nil, draft, err
		}
	}

	saved, err := doc.ToDraft()
	if err != nil {
		return nil, draft, err
	}

	s.metrics.RecordDocumentSaved(ctx, tenantID)
	s.logger.Info("document saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.Number),
		zap.Int("lines", len(doc.Lines)),
		zap.Int("deleted_lines", len(toStore.Deletions)),
	)

	id := doc.ID
	outcome.Saved = true
	outcome.DocumentID = &id
	outcome.Number = doc.Number
	outcome.Version = doc.Version
	return outcome, saved, nil
}

// Post locks a stored document once it reconciles
func (s *DocumentService) Post(ctx context.Context, tenantID, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	result := document.Evaluate(doc.Header, doc.Lines, s.tolerance)
	if err := doc.Post(result); err != nil {
		if !result.IsValid {
			s.metrics.RecordSaveBlocked(ctx, tenantID, string(result.Reason))
		}
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, doc); err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}
