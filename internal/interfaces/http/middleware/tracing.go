package middleware

import (
	"net/http"

	"github.com/finhr/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig configures request spans
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// SkipPaths are matched exactly and never traced
	SkipPaths []string
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{ServiceName: telemetry.TracerName, Enabled: true}
}

func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig starts one server span per request through otelgin,
// named after the matched route.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	skip := newPathSet(append([]string{"/health", "/api/v1/health"}, cfg.SkipPaths...), false)
	traced := func(r *http.Request) bool { return !skip.match(r.URL.Path) }
	return otelgin.Middleware(cfg.ServiceName, otelgin.WithFilter(traced))
}

// SpanAttributes adds the request and tenant ids to the request span and
// flags the outcome once the handler returns. It runs after Tracing,
// RequestID and the tenant middleware.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		var ids []any
		if id := GetRequestID(c); id != "" {
			ids = append(ids, "request_id", id)
		}
		if tenant := GetTenantID(c); tenant != "" {
			ids = append(ids, telemetry.SpanAttrTenantID, tenant)
		}
		telemetry.SetAttributes(span, ids...)

		c.Next()

		markOutcome(span, c.Writer.Status(), c.Errors.Errors())
	}
}

func markOutcome(span trace.Span, status int, errs []string) {
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	} else if status >= http.StatusBadRequest {
		telemetry.SetAttributes(span, "http.client_error", true)
	}
	if len(errs) > 0 {
		telemetry.SetAttributes(span, "gin.errors", errs)
	}
}
