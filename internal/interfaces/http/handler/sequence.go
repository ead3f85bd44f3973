package handler

import (
	"github.com/finhr/backend/internal/application/sequence"
	domain "github.com/finhr/backend/internal/domain/sequence"
	"github.com/gin-gonic/gin"
)

// SequenceHandler serves the sequential code allocator
type SequenceHandler struct {
	BaseHandler
	service *sequence.CodeService
}

// NewSequenceHandler creates a new SequenceHandler
func NewSequenceHandler(service *sequence.CodeService) *SequenceHandler {
	return &SequenceHandler{service: service}
}

// Next handles POST /sequences/:scope/next
func (h *SequenceHandler) Next(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	resp, err := h.service.Next(c.Request.Context(), tenantID, domain.Scope(c.Param("scope")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Peek handles GET /sequences/:scope/peek
func (h *SequenceHandler) Peek(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	resp, err := h.service.Peek(c.Request.Context(), tenantID, domain.Scope(c.Param("scope")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Configure handles PUT /sequences/:scope
func (h *SequenceHandler) Configure(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req sequence.ConfigureRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.Configure(c.Request.Context(), tenantID, domain.Scope(c.Param("scope")), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
