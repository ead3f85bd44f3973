package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}

func TestWithRequestAndTenant(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-1")
	ctx, l := WithTenantID(ctx, FromContext(ctx), "tenant-9")
	l.Info("saved")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "tenant-9", GetTenantID(ctx))
	assert.Empty(t, GetTenantID(context.Background()))

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-9", fields["tenant_id"])
}

func TestContextLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))

	t.Run("without a span", func(t *testing.T) {
		L(ctx).With(zap.String("kind", "category")).Debug("selection cleared")
		entry := recorded.TakeAll()[0]
		assert.Equal(t, "category", entry.ContextMap()["kind"])
		assert.NotContains(t, entry.ContextMap(), "trace_id")
	})

	t.Run("adds trace ids of the active span", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		defer func() { _ = tp.Shutdown(context.Background()) }()
		spanCtx, span := tp.Tracer("test").Start(ctx, "op")
		defer span.End()

		L(spanCtx).Warn("allocator conflict")
		entry := recorded.TakeAll()[0]
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		assert.Equal(t, span.SpanContext().TraceID().String(), entry.ContextMap()["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry.ContextMap()["span_id"])
	})
}
