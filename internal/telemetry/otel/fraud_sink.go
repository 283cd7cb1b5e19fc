package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"payshield/backend/internal/fraud"
	"payshield/backend/internal/fraud/domain"
)

// instrumentationScope names the logger that emits fraud event records.
const instrumentationScope = "payshield.fraud"

// recordEmitter is the subset of otellog.Logger the sink uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// FraudSink writes fraud events as OTel log records. It implements fraud.Sink.
type FraudSink struct {
	logger recordEmitter
}

var _ fraud.Sink = (*FraudSink)(nil)

// NewFraudSink returns a sink that emits through provider. A nil provider yields a sink that drops events.
func NewFraudSink(provider *sdklog.LoggerProvider) *FraudSink {
	if provider == nil {
		return &FraudSink{}
	}
	return &FraudSink{logger: provider.Logger(instrumentationScope)}
}

// Emit converts e to a log record. Failed challenges are recorded at WARN, everything else at INFO.
func (s *FraudSink) Emit(ctx context.Context, e domain.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Emit(ctx, toRecord(e))
	return nil
}

func toRecord(e domain.Event) otellog.Record {
	var rec otellog.Record
	ts := e.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	if e.Kind == domain.KindChallengeFailed {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetSeverityText("WARN")
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetSeverityText("INFO")
	}
	rec.SetBody(otellog.StringValue("fraud event " + string(e.Kind)))
	rec.AddAttributes(
		otellog.String("event_id", e.ID),
		otellog.String("event_kind", string(e.Kind)),
		otellog.String("merchant_id", e.MerchantID),
		otellog.String("order_id", e.OrderID),
		otellog.String("amount", e.Amount.StringFixed(2)),
	)
	if e.Detail != "" {
		rec.AddAttributes(otellog.String("detail", e.Detail))
	}
	return rec
}
