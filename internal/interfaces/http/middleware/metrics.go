package middleware

import (
	"time"

	"github.com/finhr/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

const unmatchedRoute = "unmatched"

// HTTPMetrics records request count and latency per matched route.
// A nil recorder yields a pass-through middleware.
func HTTPMetrics(metrics *telemetry.HTTPMetrics) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordRequest(c.Request.Context(), c.Request.Method, routePattern(c), c.Writer.Status(), time.Since(start))
	}
}

// routePattern returns the matched route ("/api/v1/documents/:id"), never
// the raw path, to keep label cardinality bounded.
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}
