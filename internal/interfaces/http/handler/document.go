package handler

import (
	"github.com/finhr/backend/internal/application/document"
	"github.com/finhr/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// DocumentHandler serves stored documents and their editing drafts
type DocumentHandler struct {
	BaseHandler
	documents *document.DocumentService
	editor    *document.EditorService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents *document.DocumentService, editor *document.EditorService) *DocumentHandler {
	return &DocumentHandler{documents: documents, editor: editor}
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter document.ListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	docs, total, err := h.documents.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 || pageSize <= 0 {
		page, pageSize = 1, dto.DefaultPageSize
	}
	h.SuccessWithMeta(c, docs, total, page, pageSize)
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.documents.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Post handles POST /documents/:id/post
func (h *DocumentHandler) Post(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.documents.Post(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Edit handles GET /documents/:id/edit.
// Opens a draft over the stored document.
func (h *DocumentHandler) Edit(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.editor.Open(c.Request.Context(), tenantID, document.OpenDraftRequest{DocumentID: &id})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// OpenDraft handles POST /documents/drafts
func (h *DocumentHandler) OpenDraft(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req document.OpenDraftRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.editor.Open(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetDraft handles GET /documents/drafts/:id
func (h *DocumentHandler) GetDraft(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	draftID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.editor.Get(c.Request.Context(), tenantID, draftID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// PatchHeader handles PATCH /documents/drafts/:id/header
func (h *DocumentHandler) PatchHeader(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	draftID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req document.HeaderPatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.editor.PatchHeader(c.Request.Context(), tenantID, draftID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AddLine handles POST /documents/drafts/:id/lines
func (h *DocumentHandler) AddLine(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	draftID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req document.AddLineRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.editor.AddLine(c.Request.Context(), tenantID, draftID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// EditLine handles PUT /documents/drafts/:id/lines
func (h *DocumentHandler) EditLine(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	draftID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req document.EditLineRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.editor.EditLine(c.Request.Context(), tenantID, draftID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RemoveLine handles DELETE /documents/drafts/:id/lines.
// The line is named in the body by id, key or slot.
func (h *DocumentHandler) RemoveLine(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	draftID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req document.LineRefRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.editor.RemoveLine(c.Request.Context(), tenantID, draftID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Evaluation handles GET /documents/drafts/:id/evaluation
func (h *DocumentHandler) Evaluation(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	draftID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.editor.Evaluation(c.Request.Context(), tenantID, draftID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Save handles POST /documents/drafts/:id/save.
// A save refused by reconciliation answers 422 with the outcome as data.
func (h *DocumentHandler) Save(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	draftID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	outcome, err := h.editor.Save(c.Request.Context(), tenantID, draftID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !outcome.Saved {
		h.ErrorWithData(c, dto.ErrCodeReconciliationBlocked, outcome.Evaluation.Message, outcome)
		return
	}
	h.Success(c, outcome)
}

// Discard handles DELETE /documents/drafts/:id
func (h *DocumentHandler) Discard(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	draftID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.editor.Discard(c.Request.Context(), tenantID, draftID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
