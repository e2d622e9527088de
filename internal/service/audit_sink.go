package service

import (
	"context"
	"io"
	"log/slog"

	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	"github.com/sentrypost/authcore/internal/ports"
)

var _ ports.AuditSink = (*SlogAuditSink)(nil)

// SlogAuditSink emits each audit entry as one structured JSON log line.
type SlogAuditSink struct {
	logger *slog.Logger
}

// NewSlogAuditSink writes JSON records to w on a logger separate from the application log.
func NewSlogAuditSink(w io.Writer) *SlogAuditSink {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &SlogAuditSink{logger: slog.New(h).With("log_type", "audit")}
}

func (s *SlogAuditSink) Write(ctx context.Context, e domainauth.AuditEntry) error {
	attrs := []slog.Attr{
		slog.String("audit_id", e.ID),
		slog.String("action", e.Action),
		slog.Time("occurred_at", e.OccurredAt),
		slog.Group("metadata",
			slog.String("method", e.Metadata.Method),
			slog.String("path", e.Metadata.Path),
			slog.Int("status_code", e.Metadata.StatusCode),
			slog.String("correlation_id", e.Metadata.CorrelationID),
		),
	}
	if e.UserID != "" {
		attrs = append(attrs, slog.String("user_id", e.UserID))
	}
	if e.TargetType != "" {
		attrs = append(attrs, slog.String("target_type", e.TargetType))
	}
	if e.TargetID != "" {
		attrs = append(attrs, slog.String("target_id", e.TargetID))
	}
	if e.IP != "" {
		attrs = append(attrs, slog.String("ip", e.IP))
	}
	if e.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", e.UserAgent))
	}
	if len(e.Extra) > 0 {
		attrs = append(attrs, slog.Any("extra", e.Extra))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}
