package telemetry

import (
	"context"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SecurityEvents emits security findings (anomaly scan hits, mass
// revocations) as OTel log records. Best-effort; nothing here may fail the
// caller.
type SecurityEvents struct {
	logger otellog.Logger
}

// NewSecurityEvents returns an emitter over the given LoggerProvider.
// A nil provider yields an emitter that drops everything.
func NewSecurityEvents(provider *sdklog.LoggerProvider) *SecurityEvents {
	if provider == nil {
		return &SecurityEvents{}
	}
	return &SecurityEvents{logger: provider.Logger("staff-auth-core/security")}
}

// Emit writes one event with the given type, subject, and attributes.
func (s *SecurityEvents) Emit(ctx context.Context, eventType, subject string, count int64) {
	if s.logger == nil {
		return
	}
	rec := otellog.Record{}
	rec.SetSeverity(otellog.SeverityWarn)
	rec.SetBody(otellog.StringValue(eventType))
	rec.AddAttributes(
		otellog.String("event_type", eventType),
		otellog.String("subject", subject),
		otellog.Int64("count", count),
	)
	s.logger.Emit(ctx, rec)
}
