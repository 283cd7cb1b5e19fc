package service

import (
	"time"

	"github.com/shopspring/decimal"

	"payshield/backend/internal/ledger"
	receiptdomain "payshield/backend/internal/receipt/domain"
)

// Outcome is the result of an orchestrator operation. The concrete type is one of Approved,
// ChallengeRequired, ChallengeIssued, Verified or Failed; callers switch on it.
type Outcome interface {
	outcome()
}

// Approved means the amount is within the merchant threshold; no challenge and no receipt.
type Approved struct {
	OrderID   string
	Threshold decimal.Decimal
}

// ChallengeRequired means the payer must complete a challenge using one of Methods.
type ChallengeRequired struct {
	OrderID   string
	Threshold decimal.Decimal
	Methods   []string
}

// ChallengeIssued means a code was issued. Delivered is false when the delivery channel failed;
// the code is still live and a resend replaces it.
type ChallengeIssued struct {
	OrderID   string
	ExpiresAt time.Time
	Delivered bool
}

// Verified carries the receipt of a successful challenge. Anchor reports the ledger outcome;
// the receipt is valid either way.
type Verified struct {
	Receipt *receiptdomain.Receipt
	Anchor  ledger.AnchorResult
}

// Failed is a reportable challenge failure.
type Failed struct {
	OrderID string
	Reason  Reason
}

func (Approved) outcome()          {}
func (ChallengeRequired) outcome() {}
func (ChallengeIssued) outcome()   {}
func (Verified) outcome()          {}
func (Failed) outcome()            {}

// Reason is why a challenge failed.
type Reason string

const (
	ReasonNotFound Reason = "not_found"
	ReasonExpired  Reason = "expired"
	ReasonMismatch Reason = "mismatch"
)

// Message returns the caller-facing text for the reason. It never reveals the code or timing.
func (r Reason) Message() string {
	switch r {
	case ReasonNotFound:
		return "No active verification code for this order. Request a new code."
	case ReasonExpired:
		return "Verification code expired. Request a new code."
	case ReasonMismatch:
		return "Invalid verification code."
	default:
		return "Verification failed."
	}
}
