package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies a fraud event.
type Kind string

const (
	KindTransaction        Kind = "transaction"
	KindChallengeFailed    Kind = "challenge_failed"
	KindChallengeSucceeded Kind = "challenge_succeeded"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTransaction, KindChallengeFailed, KindChallengeSucceeded:
		return true
	}
	return false
}

// Event is an append-only record of a transaction-adjacent occurrence. Detail carries the failure
// reason for challenge_failed events.
type Event struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	MerchantID string          `json:"merchantId"`
	OrderID    string          `json:"orderId"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurredAt"`
	Detail     string          `json:"detail,omitempty"`
}

// NewEvent returns an event with a fresh ID.
func NewEvent(kind Kind, merchantID, orderID string, amount decimal.Decimal, at time.Time, detail string) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		MerchantID: merchantID,
		OrderID:    orderID,
		Amount:     amount,
		OccurredAt: at.UTC(),
		Detail:     detail,
	}
}
