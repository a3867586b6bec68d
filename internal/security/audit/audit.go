package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, principalID, role, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("principal_id", principalID),
		slog.String("role", role),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogTaskMutation(ctx context.Context, principalID, role, action, taskID, status, details string) {
	al.LogAction(ctx, principalID, role, action, "task", taskID, status, details)
}

func (al *Logger) LogInvitation(ctx context.Context, principalID, role, action, email, status, details string) {
	al.LogAction(ctx, principalID, role, action, "invitation", email, status, details)
}

func (al *Logger) LogDenied(ctx context.Context, principalID, role, reason string) {
	al.LogAction(ctx, principalID, role, "access_denied", "api", "", "denied", reason)
}
