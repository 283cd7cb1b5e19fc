package domain

import (
	"github.com/shopspring/decimal"

	"payshield/backend/internal/ledger"
	"payshield/backend/internal/proof"
)

// MethodOTP is the one-time-code verification method.
const MethodOTP = "otp"

// Receipt is the immutable record of a completed verification. ApprovalHash is recomputable from
// MerchantID, OrderID, Timestamp, Method and ProofID.
type Receipt struct {
	MerchantID   string          `json:"merchantId"`
	OrderID      string          `json:"orderId"`
	Method       string          `json:"method"`
	Timestamp    int64           `json:"timestamp"`
	ProofID      string          `json:"receiptId"`
	ApprovalHash string          `json:"approvalHash"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentRef   string          `json:"paymentRef,omitempty"`
	LedgerRef    *ledger.Ref     `json:"blockchainTx"`
}

// Valid reports whether ApprovalHash matches the receipt's fields.
func (r *Receipt) Valid() bool {
	if r == nil {
		return false
	}
	return proof.Matches(r.ApprovalHash, r.MerchantID, r.OrderID, r.Timestamp, r.Method, r.ProofID)
}
