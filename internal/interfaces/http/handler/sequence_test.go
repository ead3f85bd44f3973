package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/finhr/backend/internal/application/sequence"
	"github.com/finhr/backend/internal/infrastructure/cache"
	"github.com/finhr/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSequenceRouter(t *testing.T, tenantID uuid.UUID) *gin.Engine {
	t.Helper()
	store := cache.NewInMemorySequenceStore()
	t.Cleanup(func() { _ = store.Close() })
	h := NewSequenceHandler(sequence.NewCodeService(store, sequence.Config{MaxRetries: 10}, nil, nil))

	r := gin.New()
	r.Use(withTenant(tenantID))
	r.POST("/sequences/:scope/next", h.Next)
	r.GET("/sequences/:scope/peek", h.Peek)
	r.PUT("/sequences/:scope", h.Configure)
	return r
}

func ptr[T any](v T) *T {
	return &v
}

func TestSequenceHandler(t *testing.T) {
	r := setupSequenceRouter(t, uuid.New())

	t.Run("peek does not advance", func(t *testing.T) {
		for range 2 {
			w, resp := doJSON(t, r, http.MethodGet, "/sequences/employee/peek", nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var got sequence.CodeResponse
			decodeData(t, resp, &got)
			assert.Equal(t, "0001", got.Code)
		}
	})

	t.Run("configure then allocate", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPut, "/sequences/employee", sequence.ConfigureRequest{
			Prefix: ptr("EMP"), Width: ptr(3), Counter: ptr(int64(41)),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var state sequence.StateResponse
		decodeData(t, resp, &state)
		assert.Equal(t, "EMP", state.Prefix)

		w, resp = doJSON(t, r, http.MethodPost, "/sequences/employee/next", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var got sequence.CodeResponse
		decodeData(t, resp, &got)
		assert.Equal(t, "EMP042", got.Code)
		assert.Equal(t, int64(42), got.Counter)
	})

	t.Run("counter cannot move backwards", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPut, "/sequences/employee", sequence.ConfigureRequest{Counter: ptr(int64(1))})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidCounter, resp.Error.Code)
	})

	t.Run("width out of range is a validation error", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPut, "/sequences/employee", sequence.ConfigureRequest{Width: ptr(40)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})

	t.Run("document scopes carry the entity", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPost, "/sequences/document:E1/next", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var got sequence.CodeResponse
		decodeData(t, resp, &got)
		assert.Equal(t, "document:E1", got.Scope)
	})
}

func TestSequenceHandler_ConcurrentNextIsUnique(t *testing.T) {
	r := setupSequenceRouter(t, uuid.New())

	const callers = 20
	codes := make(chan string, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/sequences/contract/next", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			var resp envelope[sequence.CodeResponse]
			if w.Code != http.StatusCreated || json.Unmarshal(w.Body.Bytes(), &resp) != nil {
				codes <- ""
				return
			}
			codes <- resp.Data.Code
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[string]bool{}
	for code := range codes {
		if code == "" {
			continue
		}
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.NotEmpty(t, seen)
}
