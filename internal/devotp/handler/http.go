// Package handler serves the dev-only code lookup endpoint.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"payshield/backend/internal/devotp"
	"payshield/backend/internal/platform/httpjson"
)

const devOTPNote = "DEV MODE ONLY"

// Handler serves GET /dev/otp/{orderId}. Only mounted when dev OTP mode is enabled and not production.
type Handler struct {
	store devotp.Store
}

// New returns a dev code handler reading from store.
func New(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/dev/otp/{orderId}", h.GetOTP)
}

type getOTPResponse struct {
	OTP  string `json:"otp"`
	Note string `json:"note"`
}

// GetOTP returns the plain code for the order. 404 if missing or expired.
func (h *Handler) GetOTP(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		httpjson.Error(w, http.StatusBadRequest, "orderId is required")
		return
	}
	code, ok := h.store.Get(r.Context(), orderID)
	if !ok {
		httpjson.Error(w, http.StatusNotFound, "OTP not found or expired")
		return
	}
	httpjson.Write(w, http.StatusOK, getOTPResponse{OTP: code, Note: devOTPNote})
}
