package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultStatementLimit = 2048

// GormLogger writes GORM statements to zap with the request, tenant and
// trace ids of the statement's context.
type GormLogger struct {
	base           *zap.Logger
	level          gormlogger.LogLevel
	slowThreshold  time.Duration
	statementLimit int
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow statement threshold; zero disables it
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowThreshold = threshold }
}

// WithStatementLimit caps the logged SQL text; zero or less logs it whole
func WithStatementLimit(n int) GormLoggerOption {
	return func(l *GormLogger) { l.statementLimit = n }
}

// NewGormLogger returns a logger for gorm.Config.Logger
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		base:           zapLogger.Named("sql"),
		level:          level,
		slowThreshold:  200 * time.Millisecond,
		statementLimit: defaultStatementLimit,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < min {
		return
	}
	if ce := l.scoped(ctx).Check(lvl, msg); ce != nil {
		ce.Write(zap.Any("args", data))
	}
}

// Trace logs one executed statement. Failures log at error, statements over
// the slow threshold at warn, and the rest at debug only in Info mode.
// Record-not-found is never logged since repositories map it to a domain
// error.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	lvl, msg, ok := l.classify(elapsed, err)
	if !ok {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("op", statementOp(sql)),
		zap.String("sql", l.truncate(sql)),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if lvl == zapcore.WarnLevel {
		fields = append(fields, zap.Duration("threshold", l.slowThreshold))
	}
	if ce := l.scoped(ctx).Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (l *GormLogger) classify(elapsed time.Duration, err error) (zapcore.Level, string, bool) {
	switch {
	case l.level <= gormlogger.Silent:
		return 0, "", false
	case err != nil:
		if errors.Is(err, gormlogger.ErrRecordNotFound) || l.level < gormlogger.Error {
			return 0, "", false
		}
		return zapcore.ErrorLevel, "sql statement failed", true
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		return zapcore.WarnLevel, "slow sql statement", true
	case l.level >= gormlogger.Info:
		return zapcore.DebugLevel, "sql statement", true
	}
	return 0, "", false
}

func (l *GormLogger) scoped(ctx context.Context) *zap.Logger {
	log := l.base
	if id := GetRequestID(ctx); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	if id := GetTenantID(ctx); id != "" {
		log = log.With(zap.String("tenant_id", id))
	}
	return (&ContextLogger{ctx: ctx, logger: log}).Zap()
}

func (l *GormLogger) truncate(sql string) string {
	if l.statementLimit <= 0 || len(sql) <= l.statementLimit {
		return sql
	}
	return sql[:l.statementLimit] + "..."
}

// statementOp is the lower-cased leading keyword, e.g. "select"
func statementOp(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \t\n("); i > 0 {
		sql = sql[:i]
	}
	return strings.ToLower(sql)
}

// MapGormLogLevel maps the application log level onto GORM's levels
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
