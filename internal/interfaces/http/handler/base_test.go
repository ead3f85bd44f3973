package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/logger"
	"github.com/finhr/backend/internal/interfaces/http/dto"
	"github.com/finhr/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withTenant stands in for the tenant middleware in handler tests
func withTenant(tenantID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, tenantID.String())
		c.Next()
	}
}

// doJSON performs a request against the router and decodes the envelope
func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// envelope decodes a response whose payload type is known
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// decodeData re-decodes the envelope data into a typed value
func decodeData(t *testing.T, resp dto.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func newContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, w
}

func TestBaseHandler_TenantID(t *testing.T) {
	h := &BaseHandler{}

	t.Run("present", func(t *testing.T) {
		tenantID := uuid.New()
		c, _ := newContext(http.MethodGet, "/")
		c.Set(middleware.TenantIDKey, tenantID.String())

		got, ok := h.tenantID(c)
		assert.True(t, ok)
		assert.Equal(t, tenantID, got)
	})

	t.Run("missing answers 400", func(t *testing.T) {
		c, w := newContext(http.MethodGet, "/")
		_, ok := h.tenantID(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeTenantID)
	})
}

func TestBaseHandler_UUIDParam(t *testing.T) {
	h := &BaseHandler{}

	c, w := newContext(http.MethodGet, "/")
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	_, ok := h.uuidParam(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidInput)

	id := uuid.New()
	c, _ = newContext(http.MethodGet, "/")
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	got, ok := h.uuidParam(c, "id")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped domain error", fmt.Errorf("loading: %w", shared.NewDomainError("STALE_FETCH", "superseded")), http.StatusConflict, dto.ErrCodeStaleFetch},
		{"invalid state", shared.NewDomainError("INVALID_STATE", "posted"), http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"plain error is internal", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newContext(http.MethodGet, "/")
			c.Set(logger.GinRequestIDKey, "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}

	t.Run("nil error writes nothing", func(t *testing.T) {
		h := &BaseHandler{}
		c, w := newContext(http.MethodGet, "/")
		h.HandleError(c, nil)
		assert.Zero(t, w.Body.Len())
	})
}

func TestBaseHandler_Responses(t *testing.T) {
	h := &BaseHandler{}

	c, w := newContext(http.MethodGet, "/")
	h.SuccessWithMeta(c, []string{"a"}, 41, 2, 20)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)

	c, w = newContext(http.MethodPost, "/")
	h.ErrorWithData(c, dto.ErrCodeReconciliationBlocked, "blocked", map[string]bool{"saved": false})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"saved":false`)
}
