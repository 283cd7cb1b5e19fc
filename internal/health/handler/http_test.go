package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// mockPinger implements Pinger and ChallengeStorePinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error { return m.pingErr }
func (m *mockPinger) Ping(context.Context) error        { return m.pingErr }

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

type mockLedger struct {
	enabled bool
	at      time.Time
}

func (m mockLedger) Enabled() bool          { return m.enabled }
func (m mockLedger) LastRefresh() time.Time { return m.at }

func check(t *testing.T, h *Handler) (int, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	h.Routes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, out
}

func TestHealth_NoDependencies(t *testing.T) {
	code, out := check(t, New(nil, nil, nil, nil))
	if code != http.StatusOK || out["status"] != "ok" {
		t.Errorf("code = %d body = %v", code, out)
	}
}

func TestHealth(t *testing.T) {
	down := errors.New("connection refused")
	tests := []struct {
		name       string
		pinger     Pinger
		policy     PolicyChecker
		challenges ChallengeStorePinger
		wantCode   int
		failing    string
	}{
		{"all healthy", &mockPinger{}, &mockPolicyChecker{}, &mockPinger{}, http.StatusOK, ""},
		{"database down", &mockPinger{pingErr: down}, &mockPolicyChecker{}, nil, http.StatusServiceUnavailable, "database"},
		{"policy broken", &mockPinger{}, &mockPolicyChecker{healthErr: errors.New("policy not loaded")}, nil, http.StatusServiceUnavailable, "policy"},
		{"redis down", nil, nil, &mockPinger{pingErr: down}, http.StatusServiceUnavailable, "challenges"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := check(t, New(tt.pinger, tt.policy, tt.challenges, nil))
			if code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%v)", code, tt.wantCode, out)
			}
			if tt.failing != "" {
				checks, _ := out["checks"].(map[string]any)
				if s, _ := checks[tt.failing].(string); s == "ok" || s == "" {
					t.Errorf("check %s = %q, want error", tt.failing, s)
				}
			}
		})
	}
}

func TestHealth_LedgerInformational(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	code, out := check(t, New(nil, nil, nil, mockLedger{enabled: true, at: at}))
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	ledger, _ := out["ledger"].(map[string]any)
	if ledger["enabled"] != true || ledger["lastRefresh"] != "2026-01-02T03:04:05Z" {
		t.Errorf("ledger = %v", ledger)
	}

	_, out = check(t, New(nil, nil, nil, mockLedger{}))
	ledger, _ = out["ledger"].(map[string]any)
	if ledger["enabled"] != false {
		t.Errorf("ledger = %v", ledger)
	}
}
