package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Challenge is a pending one-time-code verification for an order. At most one live challenge
// exists per OrderID. The plaintext code is never stored; CodeHash is the SHA-256 of it.
type Challenge struct {
	OrderID   string
	CodeHash  string
	Amount    decimal.Decimal
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether now is strictly after ExpiresAt.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
