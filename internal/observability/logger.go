// Package observability provides structured logging and health-check
// primitives shared by every component of the sync engine.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bitrixepl/engine/internal/config"
)

// contextKey avoids collisions with other packages' context values.
type contextKey string

// RequestIDKey is the context key an HTTP middleware stores the
// per-request correlation ID under; WithContext reads it back out.
const RequestIDKey contextKey = "request_id"

// Logger is a structured, fluent logger built on zap. Each With* call
// returns a copy carrying the accumulated fields; they are materialized
// into a zap.Logger only when a line is emitted.
type Logger struct {
	config *config.ObservabilityConfig
	base   *zap.Logger
	fields []zap.Field
}

// NewLogger builds a Logger from observability configuration.
func NewLogger(cfg *config.ObservabilityConfig) *Logger {
	level := getLogLevel(cfg.LogLevel)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.LogFormat == "text" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	zapLevel := slogToZapLevel(level)
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapLevel)
	base := zap.New(core)

	return &Logger{
		config: cfg,
		base:   base,
	}
}

func slogToZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level <= slog.LevelInfo:
		return zapcore.InfoLevel
	case level <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// getLogLevel maps a textual log level to a slog.Level, defaulting to
// info for anything unrecognized (including an empty string).
func getLogLevel(input string) slog.Level {
	switch input {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) clone(extra ...zap.Field) *Logger {
	fields := make([]zap.Field, len(l.fields)+len(extra))
	copy(fields, l.fields)
	copy(fields[len(l.fields):], extra)
	return &Logger{config: l.config, base: l.base, fields: fields}
}

// WithContext attaches a request ID found on ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if v := ctx.Value(RequestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return l.clone(zap.String("request_id", id))
		}
	}
	return l.clone()
}

// WithFields attaches arbitrary structured fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	extra := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		extra = append(extra, zap.Any(k, v))
	}
	return l.clone(extra...)
}

// WithError attaches an error field.
func (l *Logger) WithError(err error) *Logger {
	return l.clone(zap.Error(err))
}

// WithComponent tags the log line with the originating component
// (e.g. "bitrix_client", "sync_queue").
func (l *Logger) WithComponent(component string) *Logger {
	return l.clone(zap.String("component", component))
}

// WithOperation tags the log line with the operation in progress (e.g.
// "full_sync", "incremental_sync", "webhook_dispatch").
func (l *Logger) WithOperation(operation string) *Logger {
	return l.clone(zap.String("operation", operation))
}

// WithDuration attaches an elapsed-time field.
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return l.clone(zap.Duration("duration", d))
}

// WithRequest attaches admin-HTTP request metadata.
func (l *Logger) WithRequest(method, path, userAgent string, statusCode int) *Logger {
	return l.clone(
		zap.String("http_method", method),
		zap.String("http_path", path),
		zap.String("user_agent", userAgent),
		zap.Int("status_code", statusCode),
	)
}

// WithDatabase attaches warehouse-operation metadata.
func (l *Logger) WithDatabase(operation, table string, rowsAffected int64) *Logger {
	return l.clone(
		zap.String("db_operation", operation),
		zap.String("db_table", table),
		zap.Int64("rows_affected", rowsAffected),
	)
}

// WithExternalService attaches outbound-call metadata (used for Bitrix
// REST calls).
func (l *Logger) WithExternalService(service, endpoint string, statusCode int) *Logger {
	return l.clone(
		zap.String("external_service", service),
		zap.String("external_endpoint", endpoint),
		zap.Int("external_status_code", statusCode),
	)
}

func (l *Logger) entry() *zap.Logger {
	if len(l.fields) == 0 {
		return l.base
	}
	return l.base.With(l.fields...)
}

// LogBitrixCall records one outbound call to Bitrix's REST-over-webhook
// API, including the typed outcome when the call fails.
func (l *Logger) LogBitrixCall(ctx context.Context, method string, statusCode int, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithExternalService("bitrix24", method, statusCode).WithDuration(duration)
	if err != nil {
		entry.WithError(err).entry().Warn("bitrix call failed")
		return
	}
	entry.entry().Debug("bitrix call completed")
}

// LogDatabaseOperation records a warehouse write.
func (l *Logger) LogDatabaseOperation(ctx context.Context, operation, table string, rowsAffected int64, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithDatabase(operation, table, rowsAffected).WithDuration(duration)
	if err != nil {
		entry.WithError(err).entry().Error("database operation failed")
		return
	}
	entry.entry().Debug("database operation completed")
}

// LogExternalServiceCall records a generic outbound call.
func (l *Logger) LogExternalServiceCall(ctx context.Context, service, endpoint string, statusCode int, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithExternalService(service, endpoint, statusCode).WithDuration(duration)
	if err != nil {
		entry.WithError(err).entry().Warn("external service call failed")
		return
	}
	entry.entry().Debug("external service call completed")
}

// LogSyncRun records the outcome of one entity or reference sync task.
func (l *Logger) LogSyncRun(ctx context.Context, entityType, syncType, status string, recordsProcessed int, duration time.Duration) {
	l.WithContext(ctx).WithOperation(syncType).clone(
		zap.String("entity_type", entityType),
		zap.String("status", status),
		zap.Int("records_processed", recordsProcessed),
	).WithDuration(duration).entry().Info("sync run completed")
}

// LogAdminRequest records one request served by the administrative HTTP
// surface (spec.md §6.3).
func (l *Logger) LogAdminRequest(ctx context.Context, method, path, userAgent string, statusCode int, duration time.Duration) {
	l.WithContext(ctx).WithRequest(method, path, userAgent, statusCode).WithDuration(duration).entry().Info("admin request served")
}

// LogQueueEvent records a sync-queue lifecycle event (enqueue, dedup,
// dispatch) with the task's dedup key.
func (l *Logger) LogQueueEvent(ctx context.Context, event, taskType, entityType string) {
	l.WithContext(ctx).clone(
		zap.String("queue_event", event),
		zap.String("task_type", taskType),
		zap.String("entity_type", entityType),
	).entry().Info("queue event")
}

// LogSchemaChange records a dynamic-table-builder ALTER/CREATE.
func (l *Logger) LogSchemaChange(ctx context.Context, table, change string, columns []string) {
	l.WithContext(ctx).clone(
		zap.String("table", table),
		zap.String("change", change),
		zap.Strings("columns", columns),
	).entry().Info("warehouse schema change")
}

// LogStartup records process startup.
func (l *Logger) LogStartup(version, commitHash, buildTime string) {
	l.base.Info("starting up",
		zap.String("version", version),
		zap.String("commit", commitHash),
		zap.String("build_time", buildTime),
	)
}

// LogShutdown records process shutdown.
func (l *Logger) LogShutdown(reason string) {
	l.base.Info("shutting down", zap.String("reason", reason))
}

// LogHealthCheck records a health-check outcome.
func (l *Logger) LogHealthCheck(component, status string, details map[string]interface{}) {
	fields := []zap.Field{zap.String("component", component), zap.String("status", status)}
	for k, v := range details {
		fields = append(fields, zap.Any(k, v))
	}
	l.base.Info("health check", fields...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// String implements fmt.Stringer.
func (l *Logger) String() string {
	return fmt.Sprintf("Logger{level=%s, format=%s}", l.config.LogLevel, l.config.LogFormat)
}
