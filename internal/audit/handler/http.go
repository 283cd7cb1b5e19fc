// Package handler serves the merchant audit trail.
package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"payshield/backend/internal/audit/domain"
	auditrepo "payshield/backend/internal/audit/repository"
	"payshield/backend/internal/platform/httpjson"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler serves GET /api/merchant/audit.
type Handler struct {
	repo auditrepo.Repository
}

// New returns an audit handler.
func New(repo auditrepo.Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/merchant/audit", h.List)
}

type listResponse struct {
	Success bool               `json:"success"`
	Entries []*domain.AuditLog `json:"entries"`
}

// List returns the merchant's most recent audit entries (?merchantId=, optional ?limit=).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	merchantID := q.Get("merchantId")
	if merchantID == "" {
		httpjson.Error(w, http.StatusBadRequest, "merchantId is required")
		return
	}
	limit := defaultLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			httpjson.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLimit)
	}
	entries, err := h.repo.ListByMerchant(r.Context(), merchantID, limit)
	if err != nil {
		log.Printf("audit: list %s: %v", merchantID, err)
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.Write(w, http.StatusOK, listResponse{Success: true, Entries: entries})
}
