package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"payshield/backend/internal/fraud/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaPublisher_Disabled(t *testing.T) {
	if p := NewKafkaPublisher(nil, "topic"); p != nil {
		t.Error("no brokers should disable publishing")
	}
	if p := NewKafkaPublisher([]string{"localhost:9092"}, ""); p != nil {
		t.Error("no topic should disable publishing")
	}
	var p *KafkaPublisher
	if err := p.Emit(context.Background(), domain.Event{}); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestEmit_KeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "payshield-fraud-events"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := domain.NewEvent(domain.KindChallengeFailed, "m1", "o1", decimal.RequireFromString("42.10"), at, "expired")

	if err := p.Emit(context.Background(), e); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "m1" {
		t.Errorf("key = %q, want m1", msg.Key)
	}
	if !msg.Time.Equal(at) {
		t.Errorf("time = %v", msg.Time)
	}
	var got domain.Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("value: %v", err)
	}
	if got.ID != e.ID || got.Kind != e.Kind || got.Detail != "expired" || !got.Amount.Equal(e.Amount) {
		t.Errorf("value = %+v", got)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "challenge_failed" {
		t.Errorf("headers = %v", msg.Headers)
	}
}

func TestEmit_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, topic: "t"}
	if err := p.Emit(context.Background(), domain.Event{MerchantID: "m1"}); err == nil {
		t.Fatal("expected error")
	}
	_ = p.Close()
	if !w.closed {
		t.Error("Close should close the writer")
	}
}
