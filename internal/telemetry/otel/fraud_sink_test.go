package otel

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"payshield/backend/internal/fraud/domain"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func attrs(rec otellog.Record) map[string]string {
	out := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.AsString()
		return true
	})
	return out
}

func TestNewFraudSink_NilProvider(t *testing.T) {
	s := NewFraudSink(nil)
	e := domain.NewEvent(domain.KindTransaction, "m1", "o1", decimal.NewFromInt(10), time.Now(), "")
	if err := s.Emit(context.Background(), e); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

func TestNewFraudSink_Provider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	s := NewFraudSink(provider)
	e := domain.NewEvent(domain.KindTransaction, "m1", "o1", decimal.NewFromInt(10), time.Now(), "")
	if err := s.Emit(context.Background(), e); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

func TestFraudSink_RecordMapping(t *testing.T) {
	cap := &recordCapture{}
	s := &FraudSink{logger: cap}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := domain.NewEvent(domain.KindChallengeFailed, "m1", "order-9", decimal.RequireFromString("1250.5"), at, "mismatch")

	if err := s.Emit(context.Background(), e); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.n != 1 {
		t.Fatalf("emitted %d records, want 1", cap.n)
	}
	rec := cap.rec
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN", rec.Severity())
	}
	want := map[string]string{
		"event_id":    e.ID,
		"event_kind":  "challenge_failed",
		"merchant_id": "m1",
		"order_id":    "order-9",
		"amount":      "1250.50",
		"detail":      "mismatch",
	}
	got := attrs(rec)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attr %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestFraudSink_InfoSeverityAndZeroTime(t *testing.T) {
	cap := &recordCapture{}
	s := &FraudSink{logger: cap}
	e := domain.Event{ID: "x", Kind: domain.KindChallengeSucceeded, MerchantID: "m1", OrderID: "o1", Amount: decimal.Zero}
	before := time.Now().UTC()
	_ = s.Emit(context.Background(), e)
	if cap.rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want INFO", cap.rec.Severity())
	}
	if cap.rec.Timestamp().Before(before) {
		t.Errorf("zero OccurredAt should become now, got %v", cap.rec.Timestamp())
	}
	if _, ok := attrs(cap.rec)["detail"]; ok {
		t.Error("empty detail should not be recorded")
	}
}
