// Package handler exposes the authorization orchestrator over HTTP/JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"payshield/backend/internal/authorization/service"
	"payshield/backend/internal/platform/httpjson"
	receiptdomain "payshield/backend/internal/receipt/domain"
)

// Orchestrator is the subset of *service.Service used by the handler.
type Orchestrator interface {
	Preauth(ctx context.Context, req service.PreauthRequest) (service.Outcome, error)
	SendChallenge(ctx context.Context, orderID string, amount decimal.Decimal) (service.Outcome, error)
	Verify(ctx context.Context, req service.VerifyRequest) (service.Outcome, error)
}

// Handler serves the payment authorization endpoints.
type Handler struct {
	svc Orchestrator
}

// New returns a handler backed by svc.
func New(svc Orchestrator) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/preauth", h.Preauth)
	r.Post("/api/send-otp", h.SendOTP)
	r.Post("/api/verify-otp", h.VerifyOTP)
}

type preauthRequest struct {
	MerchantID string          `json:"merchantId"`
	OrderID    string          `json:"orderId"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

type preauthResponse struct {
	Success     bool        `json:"success"`
	MFARequired bool        `json:"mfaRequired"`
	Methods     []string    `json:"methods"`
	OrderID     string      `json:"orderId"`
	Threshold   json.Number `json:"threshold"`
}

// Preauth handles POST /api/preauth.
func (h *Handler) Preauth(w http.ResponseWriter, r *http.Request) {
	var req preauthRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Preauth(r.Context(), service.PreauthRequest{
		MerchantID: req.MerchantID,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := preauthResponse{Success: true, OrderID: req.OrderID, Methods: []string{}}
	switch o := out.(type) {
	case service.Approved:
		resp.Threshold = json.Number(o.Threshold.String())
	case service.ChallengeRequired:
		resp.MFARequired = true
		resp.Methods = o.Methods
		resp.Threshold = json.Number(o.Threshold.String())
	default:
		writeUnexpected(w, out)
		return
	}
	httpjson.Write(w, http.StatusOK, resp)
}

type sendOTPRequest struct {
	OrderID string          `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
}

type sendOTPResponse struct {
	Success   bool   `json:"success"`
	Delivered bool   `json:"delivered"`
	Message   string `json:"message"`
	ExpiresAt string `json:"expiresAt"`
}

// SendOTP handles POST /api/send-otp.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.SendChallenge(r.Context(), req.OrderID, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	issued, ok := out.(service.ChallengeIssued)
	if !ok {
		writeUnexpected(w, out)
		return
	}
	msg := "OTP sent"
	if !issued.Delivered {
		msg = "OTP issued but delivery failed; request a new code"
	}
	httpjson.Write(w, http.StatusOK, sendOTPResponse{
		Success:   true,
		Delivered: issued.Delivered,
		Message:   msg,
		ExpiresAt: issued.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type verifyOTPRequest struct {
	MerchantID string `json:"merchantId"`
	OrderID    string `json:"orderId"`
	OTP        string `json:"otp"`
	PaymentRef string `json:"paymentRef"`
}

type verifyOTPResponse struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message,omitempty"`
	Reason     service.Reason         `json:"reason,omitempty"`
	MFAReceipt *receiptdomain.Receipt `json:"mfaReceipt,omitempty"`
	Anchored   bool                   `json:"anchored"`
}

// VerifyOTP handles POST /api/verify-otp. A failed challenge is a 200 with success=false and a reason.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Verify(r.Context(), service.VerifyRequest{
		MerchantID: req.MerchantID,
		OrderID:    req.OrderID,
		Code:       req.OTP,
		PaymentRef: req.PaymentRef,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	switch o := out.(type) {
	case service.Verified:
		httpjson.Write(w, http.StatusOK, verifyOTPResponse{
			Success:    true,
			Message:    "Verification successful",
			MFAReceipt: o.Receipt,
			Anchored:   o.Anchor.Anchored(),
		})
	case service.Failed:
		httpjson.Write(w, http.StatusOK, verifyOTPResponse{
			Success: false,
			Message: o.Reason.Message(),
			Reason:  o.Reason,
		})
	default:
		writeUnexpected(w, out)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrInvalidArgument) {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("authorization: request failed: %v", err)
	httpjson.Error(w, http.StatusInternalServerError, "internal error")
}

func writeUnexpected(w http.ResponseWriter, out service.Outcome) {
	log.Printf("authorization: unexpected outcome %T", out)
	httpjson.Error(w, http.StatusInternalServerError, "internal error")
}
