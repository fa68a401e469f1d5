package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// AuditLog represents a single audited action.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes audit records as structured log entries.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger.With(slog.String("component", "audit"))}
}

// Record emits the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	attrs := []any{
		slog.String("actor", log.Actor),
		slog.String("action", log.Action),
		slog.String("entity", log.Entity),
		slog.String("entity_id", log.EntityID),
		slog.Time("at", log.At),
	}
	if len(log.Meta) > 0 {
		attrs = append(attrs, slog.Any("meta", log.Meta))
	}
	l.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}
