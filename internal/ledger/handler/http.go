// Package handler exposes recent ledger anchors over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"payshield/backend/internal/ledger"
	"payshield/backend/internal/platform/httpjson"
	"payshield/backend/internal/proof"
)

// Reader is the read side of ledger.Client.
type Reader interface {
	Enabled() bool
	RecentEntries(ctx context.Context) []ledger.Entry
	FindEntry(ctx context.Context, approvalHash string) (ledger.Entry, bool)
	LastRefresh() time.Time
}

// Handler serves /api/ledger.
type Handler struct {
	ledger Reader
}

// New returns a ledger handler.
func New(l Reader) *Handler {
	return &Handler{ledger: l}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/ledger/entries", h.Entries)
	r.Get("/api/ledger/entries/{approvalHash}", h.Entry)
}

type entriesResponse struct {
	Success     bool           `json:"success"`
	Enabled     bool           `json:"enabled"`
	Entries     []ledger.Entry `json:"entries"`
	RefreshedAt *time.Time     `json:"refreshedAt"`
}

// Entries returns the cached recent anchors.
func (h *Handler) Entries(w http.ResponseWriter, r *http.Request) {
	entries := h.ledger.RecentEntries(r.Context())
	resp := entriesResponse{Success: true, Enabled: h.ledger.Enabled(), Entries: entries}
	if at := h.ledger.LastRefresh(); !at.IsZero() {
		resp.RefreshedAt = &at
	}
	httpjson.Write(w, http.StatusOK, resp)
}

type entryResponse struct {
	Success bool          `json:"success"`
	Found   bool          `json:"found"`
	Entry   *ledger.Entry `json:"entry,omitempty"`
}

// Entry looks up one approval hash among the recent anchors. Anchors older than the ledger's
// read window are reported as not found.
func (h *Handler) Entry(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "approvalHash")
	if _, err := proof.ParseHash(hash); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "approvalHash must be 32 bytes of hex")
		return
	}
	e, ok := h.ledger.FindEntry(r.Context(), hash)
	if !ok {
		httpjson.Write(w, http.StatusNotFound, entryResponse{Success: false, Found: false})
		return
	}
	httpjson.Write(w, http.StatusOK, entryResponse{Success: true, Found: true, Entry: &e})
}
