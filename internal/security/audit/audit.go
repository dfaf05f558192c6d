package audit

import (
	"context"
	"log/slog"
	"time"
)

type requestIDKey struct{}

// WithRequestID stores the request id used to correlate audit lines
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored by WithRequestID
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	if al == nil {
		return
	}
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogLogin(ctx context.Context, userID, status, details string) {
	al.LogAction(ctx, userID, "login", "session", "", status, details)
}

func (al *Logger) LogLogout(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "logout", "session", "", "success", reason)
}

func (al *Logger) LogRefresh(ctx context.Context, userID, status, details string) {
	al.LogAction(ctx, userID, "refresh", "token", "", status, details)
}

func (al *Logger) LogChurchSwitch(ctx context.Context, userID, churchID string) {
	al.LogAction(ctx, userID, "select", "church", churchID, "success", "")
}

func (al *Logger) LogMinistrySwitch(ctx context.Context, userID, ministryID string) {
	al.LogAction(ctx, userID, "select", "ministry", ministryID, "success", "")
}
