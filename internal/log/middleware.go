package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// Middleware adds a logger to the request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context, falling back to
// the process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}

// StructuredLogger provides pre-shaped log lines for the request path.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP, requestID string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithClientIP(clientIP).
		WithRequestID(requestID).
		WithComponent(ComponentHTTP)

	sl.logger.InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request, at a level matching
// the status code.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP, requestID string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithRequestID(requestID).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogTransactionCreated logs a successful ledger write
func (sl *StructuredLogger) LogTransactionCreated(ctx context.Context, id, storeID, kind string, amountCents int64) {
	fields := NewFields().
		WithTransaction(id, storeID, kind, amountCents).
		WithOperation(OpCreate).
		WithComponent(ComponentLedger)

	sl.logger.InfoContext(ctx, "Transaction created successfully", fields.ToSlice()...)
}

// LogTransactionDeleted logs a successful ledger delete
func (sl *StructuredLogger) LogTransactionDeleted(ctx context.Context, id, storeID string) {
	fields := NewFields().
		WithOperation(OpDelete).
		WithComponent(ComponentLedger).
		ToSlice()
	fields = append(fields, FieldTransactionID, id, FieldStoreID, storeID)

	sl.logger.InfoContext(ctx, "Transaction deleted", fields...)
}

// LogReportExported logs a CSV export
func (sl *StructuredLogger) LogReportExported(ctx context.Context, storeID, start, end string, rows int) {
	fields := NewFields().
		WithWindow(start, end).
		WithOperation(OpExport).
		WithComponent(ComponentLedger).
		ToSlice()
	fields = append(fields, FieldStoreID, storeID, "rows", rows)

	sl.logger.InfoContext(ctx, "Report exported", fields...)
}
