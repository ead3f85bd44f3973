package handler

import (
	"github.com/finhr/backend/internal/application/selection"
	"github.com/gin-gonic/gin"
)

// CatalogHandler maintains reference catalog rows
type CatalogHandler struct {
	BaseHandler
	service *selection.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(service *selection.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// SaveRow handles PUT /catalogs/:kind/rows/:id
func (h *CatalogHandler) SaveRow(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req selection.SaveRowRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.SaveRow(c.Request.Context(), tenantID, c.Param("kind"), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// DeleteRow handles DELETE /catalogs/:kind/rows/:id
func (h *CatalogHandler) DeleteRow(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteRow(c.Request.Context(), tenantID, c.Param("kind"), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
