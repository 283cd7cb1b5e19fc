package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

type loggedEvent struct {
	merchantID, action, resource, metadata string
}

type captureLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (c *captureLogger) LogEvent(ctx context.Context, merchantID, action, resource, metadata string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, loggedEvent{merchantID, action, resource, metadata})
}

func auditRouter(l *captureLogger, gotBody *string) http.Handler {
	r := chi.NewRouter()
	r.Use(Audit(l))
	r.Post("/api/preauth", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/api/receipts/{proofId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/api/merchant/analytics", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})
	return r
}

func TestAudit_BodyMerchantAndBodyRestored(t *testing.T) {
	l := &captureLogger{}
	var body string
	h := auditRouter(l, &body)
	payload := `{"merchantId":"m1","orderId":"o1","amount":10}`
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/preauth", strings.NewReader(payload)))

	if body != payload {
		t.Errorf("handler body = %q, want original", body)
	}
	if len(l.events) != 1 {
		t.Fatalf("events = %d", len(l.events))
	}
	e := l.events[0]
	if e.merchantID != "m1" || e.action != "preauth" || e.resource != "payment" {
		t.Errorf("event = %+v", e)
	}
	var meta auditMetadata
	if err := json.Unmarshal([]byte(e.metadata), &meta); err != nil {
		t.Fatal(err)
	}
	if meta.Status != http.StatusCreated || meta.Path != "/api/preauth" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestAudit_QueryMerchantAndRoutePattern(t *testing.T) {
	l := &captureLogger{}
	var body string
	h := auditRouter(l, &body)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/merchant/analytics?merchantId=m2", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/receipts/abc", nil))

	if len(l.events) != 2 {
		t.Fatalf("events = %d", len(l.events))
	}
	if e := l.events[0]; e.merchantID != "m2" || e.resource != "analytics" {
		t.Errorf("analytics event = %+v", e)
	}
	if e := l.events[1]; e.merchantID != "" || e.action != "get" || e.resource != "receipt" || !strings.Contains(e.metadata, `"status":404`) {
		t.Errorf("receipt event = %+v", e)
	}
}

func TestAudit_SkipsNonAPIAndNilLogger(t *testing.T) {
	l := &captureLogger{}
	var body string
	auditRouter(l, &body).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if len(l.events) != 0 {
		t.Errorf("events = %d, want 0", len(l.events))
	}

	called := false
	h := Audit(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/x", nil))
	if !called {
		t.Error("nil logger should pass through")
	}
}

func TestPeekMerchantID_NotJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/preauth", strings.NewReader("not json"))
	if got := peekMerchantID(r); got != "" {
		t.Errorf("merchant = %q", got)
	}
	b, _ := io.ReadAll(r.Body)
	if string(b) != "not json" {
		t.Errorf("body not restored: %q", b)
	}
}
