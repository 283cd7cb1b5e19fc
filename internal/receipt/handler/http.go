// Package handler serves receipt lookup and verification.
package handler

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"payshield/backend/internal/ledger"
	"payshield/backend/internal/platform/httpjson"
	"payshield/backend/internal/receipt/domain"
)

// Store is the read side of the receipt repository.
type Store interface {
	GetByProofID(ctx context.Context, proofID string) (*domain.Receipt, error)
}

// LedgerFinder locates anchored approval hashes. May be nil.
type LedgerFinder interface {
	FindEntry(ctx context.Context, approvalHash string) (ledger.Entry, bool)
}

// Handler serves /api/receipts.
type Handler struct {
	store  Store
	ledger LedgerFinder
}

// New returns a receipt handler. ledger may be nil.
func New(store Store, ledger LedgerFinder) *Handler {
	return &Handler{store: store, ledger: ledger}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/receipts/{proofId}", h.Get)
	r.Post("/api/receipts/verify", h.Verify)
}

type getResponse struct {
	Success bool            `json:"success"`
	Receipt *domain.Receipt `json:"receipt"`
}

// Get returns a stored receipt by proof ID.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rc, err := h.store.GetByProofID(r.Context(), chi.URLParam(r, "proofId"))
	if err != nil {
		log.Printf("receipt: get: %v", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rc == nil {
		httpjson.Error(w, http.StatusNotFound, "receipt not found")
		return
	}
	httpjson.Write(w, http.StatusOK, getResponse{Success: true, Receipt: rc})
}

type verifyRequest struct {
	Receipt *domain.Receipt `json:"mfaReceipt"`
}

type verifyResponse struct {
	Success bool `json:"success"`
	// HashValid: the approval hash recomputes from the receipt's fields.
	HashValid bool `json:"hashValid"`
	// Stored: a receipt with this proof ID was issued here with identical fields.
	Stored      bool          `json:"stored"`
	OnLedger    bool          `json:"onLedger"`
	LedgerEntry *ledger.Entry `json:"ledgerEntry,omitempty"`
}

// Verify checks a presented receipt by recomputing its approval hash, comparing it with the stored
// copy, and looking for its anchor among recent ledger entries.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Receipt == nil || req.Receipt.ProofID == "" {
		httpjson.Error(w, http.StatusBadRequest, "mfaReceipt with receiptId is required")
		return
	}
	presented := req.Receipt
	resp := verifyResponse{HashValid: presented.Valid()}

	stored, err := h.store.GetByProofID(r.Context(), presented.ProofID)
	if err != nil {
		log.Printf("receipt: verify lookup %s: %v", presented.ProofID, err)
	}
	resp.Stored = stored != nil && sameFields(stored, presented)

	if resp.HashValid && h.ledger != nil {
		if e, ok := h.ledger.FindEntry(r.Context(), presented.ApprovalHash); ok {
			resp.OnLedger = true
			resp.LedgerEntry = &e
		}
	}
	resp.Success = resp.HashValid && resp.Stored
	httpjson.Write(w, http.StatusOK, resp)
}

func sameFields(a, b *domain.Receipt) bool {
	return a.MerchantID == b.MerchantID &&
		a.OrderID == b.OrderID &&
		a.Method == b.Method &&
		a.Timestamp == b.Timestamp &&
		strings.EqualFold(a.ApprovalHash, b.ApprovalHash) &&
		a.Amount.Equal(b.Amount)
}
