package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func query() (string, int64) { return `SELECT * FROM "reference_rows"`, 3 }

func observed(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("failures carry the request scope", func(t *testing.T) {
		gl, recorded := observed(gormlogger.Warn)
		ctx, _ := WithTenantID(context.Background(), zap.NewNop(), "tenant-1")
		ctx, _ = WithRequestID(ctx, zap.NewNop(), "req-9")

		gl.Trace(ctx, time.Now(), query, errors.New("connection reset"))

		require.Equal(t, 1, recorded.Len())
		entry := recorded.All()[0]
		assert.Equal(t, "sql statement failed", entry.Message)
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		fields := entry.ContextMap()
		assert.Equal(t, "tenant-1", fields["tenant_id"])
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "select", fields["op"])
		assert.Equal(t, int64(3), fields["rows"])
	})

	t.Run("record not found is not logged", func(t *testing.T) {
		gl, recorded := observed(gormlogger.Info)
		gl.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
		assert.Zero(t, recorded.Len())
	})

	t.Run("slow statements warn with the threshold", func(t *testing.T) {
		gl, recorded := observed(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)

		require.Equal(t, 1, recorded.Len())
		entry := recorded.All()[0]
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		assert.Equal(t, time.Millisecond, entry.ContextMap()["threshold"])
	})

	t.Run("zero threshold disables slow logging", func(t *testing.T) {
		gl, recorded := observed(gormlogger.Warn, WithSlowThreshold(0))
		gl.Trace(context.Background(), time.Now().Add(-time.Hour), query, nil)
		assert.Zero(t, recorded.Len())
	})

	t.Run("plain statements only in info mode", func(t *testing.T) {
		gl, recorded := observed(gormlogger.Warn)
		gl.Trace(context.Background(), time.Now(), query, nil)
		assert.Zero(t, recorded.Len())

		gl.LogMode(gormlogger.Info).Trace(context.Background(), time.Now(), query, nil)
		assert.Equal(t, 1, recorded.FilterMessage("sql statement").Len())
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := observed(gormlogger.Info)
		gl.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), query, errors.New("x"))
		assert.Zero(t, recorded.Len())
	})

	t.Run("long statements are cut", func(t *testing.T) {
		gl, recorded := observed(gormlogger.Info, WithStatementLimit(16))
		long := func() (string, int64) { return "INSERT INTO t VALUES " + strings.Repeat("(1),", 50), 50 }
		gl.Trace(context.Background(), time.Now(), long, nil)

		require.Equal(t, 1, recorded.Len())
		sql := recorded.All()[0].ContextMap()["sql"].(string)
		assert.Equal(t, "INSERT INTO t VA...", sql)
		assert.Equal(t, "insert", recorded.All()[0].ContextMap()["op"])
	})
}

func TestGormLogger_Messages(t *testing.T) {
	gl, recorded := observed(gormlogger.Warn)
	gl.Info(context.Background(), "migrating", "documents")
	gl.Warn(context.Background(), "deprecated", 1)
	gl.Error(context.Background(), "broken")

	require.Equal(t, 2, recorded.Len())
	assert.Equal(t, "deprecated", recorded.All()[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, recorded.All()[1].Level)
}

func TestStatementOp(t *testing.T) {
	assert.Equal(t, "select", statementOp("  SELECT 1"))
	assert.Equal(t, "with", statementOp("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "", statementOp(""))
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("ERROR"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}

var _ gormlogger.Interface = (*GormLogger)(nil)
