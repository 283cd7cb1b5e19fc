package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"payshield/backend/internal/devotp"
)

func newRouter(store devotp.Store) http.Handler {
	r := chi.NewRouter()
	New(store).Routes(r)
	return r
}

func TestGetOTP_Found(t *testing.T) {
	store := devotp.NewMemoryStore()
	store.Put(context.Background(), "order-1", "123456", time.Now().Add(time.Minute))

	rec := httptest.NewRecorder()
	newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dev/otp/order-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp getOTPResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OTP != "123456" {
		t.Errorf("otp = %q, want 123456", resp.OTP)
	}
	if resp.Note != devOTPNote {
		t.Errorf("note = %q, want %q", resp.Note, devOTPNote)
	}
}

func TestGetOTP_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(devotp.NewMemoryStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dev/otp/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetOTP_Expired(t *testing.T) {
	store := devotp.NewMemoryStore()
	store.Put(context.Background(), "order-1", "123456", time.Now().Add(-time.Minute))
	rec := httptest.NewRecorder()
	newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dev/otp/order-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
