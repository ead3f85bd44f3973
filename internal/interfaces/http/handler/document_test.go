package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	appdoc "github.com/finhr/backend/internal/application/document"
	"github.com/finhr/backend/internal/application/sequence"
	"github.com/finhr/backend/internal/domain/document"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/cache"
	"github.com/finhr/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDocumentRepository is a mock implementation of document.Repository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]document.Document, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]document.Document), args.Get(1).(int64), args.Error(2)
}

func (m *MockDocumentRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error) {
	args := m.Called(ctx, tenantID, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockDocumentRepository) Update(ctx context.Context, doc *document.Document, deletions []document.LineDeletion) error {
	return m.Called(ctx, doc, deletions).Error(0)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, doc *document.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupDocumentRouter(t *testing.T, tenantID uuid.UUID, repo *MockDocumentRepository) *gin.Engine {
	t.Helper()
	store := cache.NewInMemorySequenceStore()
	t.Cleanup(func() { _ = store.Close() })
	codes := sequence.NewCodeService(store, sequence.Config{MaxRetries: 3}, nil, nil)

	documents := appdoc.NewDocumentService(repo, codes, decimal.Zero, nil, nil)
	editor := appdoc.NewEditorService(documents, time.Minute, nil)
	t.Cleanup(func() { _ = editor.Close() })
	h := NewDocumentHandler(documents, editor)

	r := gin.New()
	r.Use(withTenant(tenantID))
	r.GET("/documents", h.List)
	r.GET("/documents/:id", h.Get)
	r.GET("/documents/:id/edit", h.Edit)
	r.POST("/documents/:id/post", h.Post)
	r.POST("/documents/drafts", h.OpenDraft)
	r.GET("/documents/drafts/:id", h.GetDraft)
	r.DELETE("/documents/drafts/:id", h.Discard)
	r.PATCH("/documents/drafts/:id/header", h.PatchHeader)
	r.POST("/documents/drafts/:id/lines", h.AddLine)
	r.PUT("/documents/drafts/:id/lines", h.EditLine)
	r.DELETE("/documents/drafts/:id/lines", h.RemoveLine)
	r.GET("/documents/drafts/:id/evaluation", h.Evaluation)
	r.POST("/documents/drafts/:id/save", h.Save)
	return r
}

func openDraft(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w, resp := doJSON(t, r, http.MethodPost, "/documents/drafts", appdoc.OpenDraftRequest{
		Header: &appdoc.HeaderPatchRequest{
			AmountExclTax: ptr(dec("100.00")),
			TaxAmount:     ptr(dec("20.00")),
			AmountInclTax: ptr(dec("120.00")),
			EntityID:      ptr("E1"),
			Description:   ptr("March rent"),
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var draft appdoc.DraftResponse
	decodeData(t, resp, &draft)
	return "/documents/drafts/" + draft.DraftID.String()
}

func TestDocumentHandler_EditAndSave(t *testing.T) {
	tenantID := uuid.New()
	repo := new(MockDocumentRepository)
	r := setupDocumentRouter(t, tenantID, repo)
	base := openDraft(t, r)

	w, _ := doJSON(t, r, http.MethodPost, base+"/lines", appdoc.AddLineRequest{AmountExclTax: dec("60.00"), Label: "Office"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("evaluation reports the deviation", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodGet, base+"/evaluation", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var eval appdoc.EvaluationResponse
		decodeData(t, resp, &eval)
		assert.False(t, eval.IsValid)
		assert.Equal(t, "amount-mismatch", eval.Reason)
		assert.True(t, eval.Deviation.Equal(dec("40")))
	})

	t.Run("blocked save answers 422 with the outcome", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPost, base+"/save", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeReconciliationBlocked, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "40")

		var outcome appdoc.SaveOutcome
		decodeData(t, resp, &outcome)
		assert.False(t, outcome.Saved)
		assert.Equal(t, "amount-mismatch", outcome.Evaluation.Reason)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("balanced draft is numbered and stored", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPost, base+"/lines", appdoc.AddLineRequest{AmountExclTax: dec("40.00"), Label: "Storage"})
		require.Equal(t, http.StatusOK, w.Code)

		repo.On("ExistsByNumber", mock.Anything, tenantID, "0001").Return(false, nil).Once()
		repo.On("Create", mock.Anything, mock.MatchedBy(func(d *document.Document) bool {
			return d.Number == "0001" && len(d.Lines) == 2 && d.TenantID == tenantID
		})).Return(nil).Once()

		w, resp := doJSON(t, r, http.MethodPost, base+"/save", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var outcome appdoc.SaveOutcome
		decodeData(t, resp, &outcome)
		assert.True(t, outcome.Saved)
		assert.Equal(t, "0001", outcome.Number)
		repo.AssertExpectations(t)
	})

	t.Run("editing after save keeps the stored identity", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPut, base+"/lines", appdoc.EditLineRequest{
			LineRefRequest: appdoc.LineRefRequest{Slot: ptr(1)},
			Label:          ptr("Archive"),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var draft appdoc.DraftResponse
		decodeData(t, resp, &draft)
		require.Len(t, draft.Lines, 2)
		assert.Equal(t, "Archive", draft.Lines[1].Label)
		assert.NotNil(t, draft.Lines[1].ID)
		assert.NotNil(t, draft.DocumentID)
	})

	t.Run("removing a stored line queues its deletion", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodDelete, base+"/lines", appdoc.LineRefRequest{Slot: ptr(0)})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var draft appdoc.DraftResponse
		decodeData(t, resp, &draft)
		assert.Len(t, draft.Lines, 1)
		assert.Len(t, draft.Deletions, 1)
	})

	t.Run("header patch leaves lines alone", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPatch, base+"/header", appdoc.HeaderPatchRequest{AmountExclTax: ptr(dec("40.00"))})
		require.Equal(t, http.StatusOK, w.Code)
		var draft appdoc.DraftResponse
		decodeData(t, resp, &draft)
		assert.Len(t, draft.Lines, 1)
		assert.True(t, draft.Evaluation.IsValid)
	})
}

func TestDocumentHandler_DraftErrors(t *testing.T) {
	r := setupDocumentRouter(t, uuid.New(), new(MockDocumentRepository))
	base := openDraft(t, r)

	t.Run("line reference is required", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodDelete, base+"/lines", appdoc.LineRefRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown line", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodDelete, base+"/lines", appdoc.LineRefRequest{Key: "nope"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeLineNotFound, resp.Error.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPost, base+"/lines", map[string]any{"amount_excl_tax": "lots"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})

	t.Run("discard then get is not found", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodDelete, base, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w, resp := doJSON(t, r, http.MethodGet, base, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeDraftNotFound, resp.Error.Code)
	})
}

func storedDocument(t *testing.T, tenantID uuid.UUID, number string) *document.Document {
	t.Helper()
	d := document.NewDraft()
	d.Number = number
	d.Header.AmountExclTax = dec("100.00")
	d.Header.EntityID = "E1"
	d.Lines, _ = d.Lines.Add(document.Line{AmountExclTax: dec("100.00")})
	doc, err := document.FromDraft(tenantID, d)
	require.NoError(t, err)
	return doc
}

func TestDocumentHandler_StoredDocuments(t *testing.T) {
	tenantID := uuid.New()

	t.Run("list carries pagination meta", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		r := setupDocumentRouter(t, tenantID, repo)
		doc := storedDocument(t, tenantID, "INV-1")
		repo.On("FindAllForTenant", mock.Anything, tenantID, mock.MatchedBy(func(f shared.Filter) bool {
			return f.Filters["status"] == "DRAFT"
		})).Return([]document.Document{*doc}, int64(1), nil)

		w, resp := doJSON(t, r, http.MethodGet, "/documents?status=DRAFT", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(1), resp.Meta.Total)
		var list []appdoc.DocumentListResponse
		decodeData(t, resp, &list)
		require.Len(t, list, 1)
		assert.Equal(t, "INV-1", list[0].Number)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		r := setupDocumentRouter(t, tenantID, new(MockDocumentRepository))
		w, _ := doJSON(t, r, http.MethodGet, "/documents?status=VOID", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get missing document", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		r := setupDocumentRouter(t, tenantID, repo)
		id := uuid.New()
		repo.On("FindByIDForTenant", mock.Anything, tenantID, id).Return(nil, shared.ErrNotFound)

		w, resp := doJSON(t, r, http.MethodGet, "/documents/"+id.String(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("edit opens a draft over the stored lines", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		r := setupDocumentRouter(t, tenantID, repo)
		doc := storedDocument(t, tenantID, "INV-2")
		repo.On("FindByIDForTenant", mock.Anything, tenantID, doc.ID).Return(doc, nil)

		w, resp := doJSON(t, r, http.MethodGet, "/documents/"+doc.ID.String()+"/edit", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var draft appdoc.DraftResponse
		decodeData(t, resp, &draft)
		assert.Equal(t, "INV-2", draft.Number)
		require.Len(t, draft.Lines, 1)
		assert.Equal(t, *doc.Lines[0].ID, *draft.Lines[0].ID)
	})

	t.Run("post then edit is refused", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		r := setupDocumentRouter(t, tenantID, repo)
		doc := storedDocument(t, tenantID, "INV-3")
		repo.On("FindByIDForTenant", mock.Anything, tenantID, doc.ID).Return(doc, nil)
		repo.On("UpdateStatus", mock.Anything, doc).Return(nil)

		w, _ := doJSON(t, r, http.MethodPost, "/documents/"+doc.ID.String()+"/post", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w, resp := doJSON(t, r, http.MethodGet, "/documents/"+doc.ID.String()+"/edit", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeDocumentPosted, resp.Error.Code)
	})
}
