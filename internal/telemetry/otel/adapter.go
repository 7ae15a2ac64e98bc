package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	auditdomain "ridehail-identity/internal/audit/domain"
)

// recordEmitter is the subset of otellog.Logger the audit sink uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// AuditSink sends audit events as OTel log records.
type AuditSink struct {
	logger recordEmitter
}

// NewAuditSink returns a sink emitting through provider. A nil provider yields a sink that drops events.
func NewAuditSink(provider *sdklog.LoggerProvider) *AuditSink {
	if provider == nil {
		return &AuditSink{}
	}
	return &AuditSink{logger: provider.Logger("ridehail.auth.audit")}
}

// NewAuditSinkWithLogger returns a sink emitting through logger.
func NewAuditSinkWithLogger(logger recordEmitter) *AuditSink {
	return &AuditSink{logger: logger}
}

// Record converts e to a log record. Failures are reported at WARN severity.
func (s *AuditSink) Record(ctx context.Context, e auditdomain.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(string(e.Type)))
	if e.Outcome == auditdomain.OutcomeFailure {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetSeverityText("WARN")
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetSeverityText("INFO")
	}
	for _, kv := range []struct{ k, v string }{
		{"event_id", e.ID},
		{"event_type", string(e.Type)},
		{"outcome", string(e.Outcome)},
		{"identity_id", e.IdentityID},
		{"target", e.Target},
		{"channel", e.Channel},
		{"provider", e.Provider},
		{"app", e.App},
		{"reason", e.Reason},
		{"client_ip", e.IP},
		{"user_agent", e.UserAgent},
	} {
		if kv.v != "" {
			rec.AddAttributes(otellog.String(kv.k, kv.v))
		}
	}
	s.logger.Emit(ctx, rec)
	return nil
}
