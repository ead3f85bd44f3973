package document

import (
	"context"
	"sync"
	"time"

	"github.com/finhr/backend/internal/domain/document"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDraftNotFound is returned for unknown, expired, discarded or foreign drafts
var ErrDraftNotFound = shared.NewDomainError("DRAFT_NOT_FOUND", "Draft not found or expired")

type openDraft struct {
	mu       sync.Mutex
	tenantID uuid.UUID
	draft    document.Draft
}

// EditorService keeps documents being edited in memory between requests.
// Every line change goes through ApplyLineMutation; nothing reaches the
// store until Save, which flushes the whole draft at once.
type EditorService struct {
	documents *DocumentService
	drafts    *cache.InMemoryStore[uuid.UUID, *openDraft]
	logger    *zap.Logger
}

// NewEditorService creates an editor whose drafts expire after ttl of inactivity
func NewEditorService(documents *DocumentService, ttl time.Duration, logger *zap.Logger) *EditorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	drafts := cache.NewInMemoryStore[uuid.UUID, *openDraft](
		cache.WithTTL(ttl),
		cache.WithSlidingExpiration(),
		cache.WithLogger(logger),
	)
	drafts.OnEvict(func(id uuid.UUID, d *openDraft) {
		logger.Debug("draft expired",
			zap.String("draft_id", id.String()),
			zap.String("tenant_id", d.tenantID.String()))
	})
	return &EditorService{
		documents: documents,
		drafts:    drafts,
		logger:    logger,
	}
}

// Open starts editing a new document, or a stored one when req.DocumentID is set
func (s *EditorService) Open(ctx context.Context, tenantID uuid.UUID, req OpenDraftRequest) (*DraftResponse, error) {
	draft := s.documents.NewDraft()
	if req.DocumentID != nil {
		loaded, err := s.documents.Load(ctx, tenantID, *req.DocumentID)
		if err != nil {
			return nil, err
		}
		draft = loaded
	} else if req.Number != "" {
		draft.Number = req.Number
	}
	if req.Header != nil {
		patch := req.Header.ToPatch()
		if err := patch.Validate(); err != nil {
			return nil, err
		}
		draft = draft.WithHeader(patch)
	}

	id := uuid.New()
	s.drafts.Set(id, &openDraft{tenantID: tenantID, draft: draft})
	s.logger.Debug("draft opened",
		zap.String("draft_id", id.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.Bool("new", draft.IsNew()))
	return toDraftResponse(id, draft, s.documents.Tolerance()), nil
}

// Get returns the current state of a draft
func (s *EditorService) Get(ctx context.Context, tenantID, draftID uuid.UUID) (*DraftResponse, error) {
	var resp *DraftResponse
	err := s.with(tenantID, draftID, func(d *openDraft) error {
		resp = toDraftResponse(draftID, d.draft, s.documents.Tolerance())
		return nil
	})
	return resp, err
}

// PatchHeader updates header fields; lines are untouched
func (s *EditorService) PatchHeader(ctx context.Context, tenantID, draftID uuid.UUID, req HeaderPatchRequest) (*DraftResponse, error) {
	return s.update(tenantID, draftID, func(d document.Draft) (document.Draft, error) {
		patch := req.ToPatch()
		if err := patch.Validate(); err != nil {
			return d, err
		}
		return d.WithHeader(patch), nil
	})
}

// AddLine appends a line
func (s *EditorService) AddLine(ctx context.Context, tenantID, draftID uuid.UUID, req AddLineRequest) (*DraftResponse, error) {
	return s.mutate(tenantID, draftID, document.AddLine{Line: req.ToLine()})
}

// EditLine patches the referenced line
func (s *EditorService) EditLine(ctx context.Context, tenantID, draftID uuid.UUID, req EditLineRequest) (*DraftResponse, error) {
	ref, err := req.ToRef()
	if err != nil {
		return nil, err
	}
	return s.mutate(tenantID, draftID, document.EditLine{Ref: ref, Patch: req.ToPatch()})
}

// RemoveLine removes the referenced line. Persisted lines are queued for
// deletion at save time.
func (s *EditorService) RemoveLine(ctx context.Context, tenantID, draftID uuid.UUID, req LineRefRequest) (*DraftResponse, error) {
	ref, err := req.ToRef()
	if err != nil {
		return nil, err
	}
	return s.mutate(tenantID, draftID, document.RemoveLine{Ref: ref})
}

// Evaluation reconciles the draft without saving
func (s *EditorService) Evaluation(ctx context.Context, tenantID, draftID uuid.UUID) (*EvaluationResponse, error) {
	var resp EvaluationResponse
	err := s.with(tenantID, draftID, func(d *openDraft) error {
		resp = ToEvaluationResponse(s.documents.Evaluate(d.draft))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Save flushes the draft. A blocked save leaves the draft open and
// unchanged; a successful one replaces it with the stored state so that
// editing can continue.
func (s *EditorService) Save(ctx context.Context, tenantID, draftID uuid.UUID) (*SaveOutcome, error) {
	var outcome *SaveOutcome
	err := s.with(tenantID, draftID, func(d *openDraft) error {
		out, saved, err := s.documents.Save(ctx, tenantID, d.draft)
		if err != nil {
			return err
		}
		if out.Saved {
			d.draft = saved
		}
		outcome = out
		return nil
	})
	return outcome, err
}

// Discard drops a draft without saving
func (s *EditorService) Discard(ctx context.Context, tenantID, draftID uuid.UUID) error {
	if err := s.with(tenantID, draftID, func(*openDraft) error { return nil }); err != nil {
		return err
	}
	s.drafts.Delete(draftID)
	return nil
}

// OpenDrafts returns the number of drafts currently held
func (s *EditorService) OpenDrafts() int {
	return s.drafts.Count()
}

// Close stops the registry's expiry sweep
func (s *EditorService) Close() error {
	return s.drafts.Close()
}

func (s *EditorService) mutate(tenantID, draftID uuid.UUID, m document.LineMutation) (*DraftResponse, error) {
	return s.update(tenantID, draftID, func(d document.Draft) (document.Draft, error) {
		next, _, err := s.documents.Mutate(d, m)
		return next, err
	})
}

func (s *EditorService) update(tenantID, draftID uuid.UUID, fn func(document.Draft) (document.Draft, error)) (*DraftResponse, error) {
	var resp *DraftResponse
	err := s.with(tenantID, draftID, func(d *openDraft) error {
		next, err := fn(d.draft)
		if err != nil {
			return err
		}
		d.draft = next
		resp = toDraftResponse(draftID, next, s.documents.Tolerance())
		return nil
	})
	return resp, err
}

func (s *EditorService) with(tenantID, draftID uuid.UUID, fn func(*openDraft) error) error {
	d, ok := s.drafts.Get(draftID)
	if !ok || d.tenantID != tenantID {
		return ErrDraftNotFound
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d)
}
