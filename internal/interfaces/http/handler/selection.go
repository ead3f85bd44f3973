package handler

import (
	"github.com/finhr/backend/internal/application/selection"
	"github.com/gin-gonic/gin"
)

// SelectionHandler serves catalog visibility and cascading selection sessions
type SelectionHandler struct {
	BaseHandler
	service *selection.SelectionService
}

// NewSelectionHandler creates a new SelectionHandler
func NewSelectionHandler(service *selection.SelectionService) *SelectionHandler {
	return &SelectionHandler{service: service}
}

// visibleQuery represents the query of a visible-rows lookup
type visibleQuery struct {
	Parent string `form:"parent" binding:"max=64"`
	Policy string `form:"policy" binding:"omitempty,oneof=scoped global_fallback global-fallback"`
}

// Visible handles GET /catalogs/:kind/visible.
// Returns the rows of a catalog kind selectable under the given parent.
func (h *SelectionHandler) Visible(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q visibleQuery
	if !h.bindQuery(c, &q) {
		return
	}

	resp, err := h.service.Visible(c.Request.Context(), tenantID, c.Param("kind"), q.Parent, q.Policy)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Resolve handles POST /selections/resolve
func (h *SelectionHandler) Resolve(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req selection.ResolveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.Resolve(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Open handles POST /selections/sessions
func (h *SelectionHandler) Open(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req selection.OpenSessionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.Open(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get handles GET /selections/sessions/:id
func (h *SelectionHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Refresh handles POST /selections/sessions/:id/catalog.
// A fetch overtaken by a newer one for the same level answers with stale set.
func (h *SelectionHandler) Refresh(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req selection.RefreshRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Select handles POST /selections/sessions/:id/select
func (h *SelectionHandler) Select(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req selection.SelectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.Select(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SetParent handles POST /selections/sessions/:id/parent
func (h *SelectionHandler) SetParent(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req selection.SetParentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.SetParent(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// FinishHydration handles POST /selections/sessions/:id/hydration/complete
func (h *SelectionHandler) FinishHydration(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.FinishHydration(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Close handles DELETE /selections/sessions/:id
func (h *SelectionHandler) Close(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Close(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
