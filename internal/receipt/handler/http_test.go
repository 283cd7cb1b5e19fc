package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"payshield/backend/internal/ledger"
	"payshield/backend/internal/proof"
	"payshield/backend/internal/receipt/domain"
	"payshield/backend/internal/receipt/repository"
)

type fakeLedger map[string]ledger.Entry

func (f fakeLedger) FindEntry(_ context.Context, h string) (ledger.Entry, bool) {
	e, ok := f[h]
	return e, ok
}

type brokenStore struct{}

func (brokenStore) GetByProofID(context.Context, string) (*domain.Receipt, error) {
	return nil, errors.New("db down")
}

func issue(t *testing.T, repo *repository.MemoryRepository) *domain.Receipt {
	t.Helper()
	p, err := proof.Build("m1", "order-1", 1767323045000, domain.MethodOTP)
	if err != nil {
		t.Fatal(err)
	}
	rc := &domain.Receipt{
		MerchantID:   "m1",
		OrderID:      "order-1",
		Method:       domain.MethodOTP,
		Timestamp:    1767323045000,
		ProofID:      p.ProofID,
		ApprovalHash: p.ApprovalHash,
		Amount:       decimal.RequireFromString("750.00"),
	}
	if err := repo.Save(context.Background(), rc); err != nil {
		t.Fatal(err)
	}
	return rc
}

func do(t *testing.T, h *Handler, method, url string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	h.Routes(r)
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, url, &buf))
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return rec, out
}

func TestGet(t *testing.T) {
	repo := repository.NewMemoryRepository()
	rc := issue(t, repo)
	h := New(repo, nil)

	rec, out := do(t, h, http.MethodGet, "/api/receipts/"+rc.ProofID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got, _ := out["receipt"].(map[string]any)
	if got["receiptId"] != rc.ProofID || got["approvalHash"] != rc.ApprovalHash {
		t.Errorf("receipt = %v", got)
	}

	if rec, _ := do(t, h, http.MethodGet, "/api/receipts/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d", rec.Code)
	}
	if rec, _ := do(t, New(brokenStore{}, nil), http.MethodGet, "/api/receipts/x", nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("broken store: status = %d", rec.Code)
	}
}

func TestVerify(t *testing.T) {
	repo := repository.NewMemoryRepository()
	rc := issue(t, repo)
	anchored := fakeLedger{rc.ApprovalHash: {LedgerRef: "0xtx", ApprovalHash: rc.ApprovalHash}}

	tampered := *rc
	tampered.OrderID = "order-2"

	forged := *rc
	forged.ProofID = "ffffffffffffffffffffffffffffffff"
	forged.ApprovalHash, _ = proof.ApprovalHash(forged.MerchantID, forged.OrderID, forged.Timestamp, forged.Method, forged.ProofID)

	tests := []struct {
		name                        string
		receipt                     *domain.Receipt
		ledger                      LedgerFinder
		success, hash, stored, onLd bool
	}{
		{"genuine anchored", rc, anchored, true, true, true, true},
		{"genuine no ledger", rc, nil, true, true, true, false},
		{"tampered field", &tampered, anchored, false, false, false, false},
		{"valid hash never issued", &forged, anchored, false, true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, New(repo, tt.ledger), http.MethodPost, "/api/receipts/verify", map[string]any{"mfaReceipt": tt.receipt})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d (%v)", rec.Code, out)
			}
			if out["success"] != tt.success || out["hashValid"] != tt.hash || out["stored"] != tt.stored || out["onLedger"] != tt.onLd {
				t.Errorf("body = %v", out)
			}
		})
	}
}

func TestVerify_BadRequest(t *testing.T) {
	h := New(repository.NewMemoryRepository(), nil)
	if rec, _ := do(t, h, http.MethodPost, "/api/receipts/verify", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
