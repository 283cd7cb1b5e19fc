// Package handler serves the merchant analytics endpoint.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payshield/backend/internal/analytics"
	"payshield/backend/internal/platform/httpjson"
)

// Reporter builds analytics reports.
type Reporter interface {
	Report(ctx context.Context, merchantID string) (*analytics.Report, error)
}

// Handler serves GET /api/merchant/analytics.
type Handler struct {
	svc Reporter
}

// New returns an analytics handler.
func New(svc Reporter) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/merchant/analytics", h.Analytics)
}

type analyticsResponse struct {
	Success bool `json:"success"`
	*analytics.Report
}

// Analytics returns the report for ?merchantId=.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Report(r.Context(), r.URL.Query().Get("merchantId"))
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidArgument) {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("analytics: report failed: %v", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.Write(w, http.StatusOK, analyticsResponse{Success: true, Report: rep})
}
