package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProfiling(t *testing.T) {
	type seen struct {
		route, resource, tenant string
		ok                      bool
	}

	newRouter := func(cfg ProfilingConfig, out *seen) *gin.Engine {
		router := gin.New()
		router.Use(TenantMiddlewareWithConfig(TenantMiddlewareConfig{SkipPaths: []string{"/health"}}), Profiling(cfg))
		handler := func(c *gin.Context) {
			ctx := c.Request.Context()
			out.route, out.ok = pprof.Label(ctx, ProfilingLabelRoute)
			out.resource, _ = pprof.Label(ctx, ProfilingLabelResource)
			out.tenant, _ = pprof.Label(ctx, ProfilingLabelTenantID)
			c.Status(http.StatusOK)
		}
		router.POST("/api/v1/documents/drafts/:id/save", handler)
		router.GET("/health", handler)
		return router
	}

	t.Run("labels the request", func(t *testing.T) {
		var got seen
		tenantID := uuid.NewString()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/drafts/"+uuid.NewString()+"/save", nil)
		req.Header.Set(TenantIDHeader, tenantID)
		newRouter(DefaultProfilingConfig(), &got).ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, got.ok)
		assert.Equal(t, "/api/v1/documents/drafts/:id/save", got.route)
		assert.Equal(t, "documents", got.resource)
		assert.Equal(t, tenantID, got.tenant)
	})

	t.Run("skips health", func(t *testing.T) {
		var got seen
		newRouter(DefaultProfilingConfig(), &got).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.False(t, got.ok)
	})

	t.Run("disabled", func(t *testing.T) {
		var got seen
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/drafts/x/save", nil)
		newRouter(ProfilingConfig{}, &got).ServeHTTP(httptest.NewRecorder(), req)
		assert.False(t, got.ok)
	})
}

func TestResourceFromRoute(t *testing.T) {
	tests := map[string]string{
		"/api/v1/catalogs/:kind/visible": "catalogs",
		"/api/v2/sequences/:scope/next":  "sequences",
		"/health":                        "health",
		"":                               "",
		"/api/v1/:id":                    "",
	}
	for route, want := range tests {
		t.Run(route, func(t *testing.T) {
			assert.Equal(t, want, resourceFromRoute(route))
		})
	}
}
