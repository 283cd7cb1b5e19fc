// Package policy decides whether a payment amount requires a one-time-code challenge.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultThreshold is the global threshold used when a merchant has no explicit entry.
var DefaultThreshold = decimal.RequireFromString("500.00")

// Decision is the outcome of a threshold evaluation.
type Decision struct {
	RequiresChallenge bool
	Threshold         decimal.Decimal
}

// Evaluator decides whether a challenge is required. Implementations never fail; missing configuration
// falls back to the global default.
type Evaluator interface {
	Evaluate(ctx context.Context, merchantID string, amount decimal.Decimal) Decision
}

// Table is a per-merchant threshold lookup with a global default. Immutable after construction.
type Table struct {
	defaultThreshold decimal.Decimal
	merchants        map[string]decimal.Decimal
}

// NewTable returns a table with the given default and per-merchant thresholds. merchants is copied.
func NewTable(defaultThreshold decimal.Decimal, merchants map[string]decimal.Decimal) *Table {
	m := make(map[string]decimal.Decimal, len(merchants))
	for k, v := range merchants {
		m[k] = v
	}
	return &Table{defaultThreshold: defaultThreshold, merchants: m}
}

// Threshold returns the merchant's threshold, or the default when the merchant has none.
func (t *Table) Threshold(merchantID string) decimal.Decimal {
	if v, ok := t.merchants[merchantID]; ok {
		return v
	}
	return t.defaultThreshold
}

// RequiresChallenge reports whether amount is strictly above the merchant's threshold.
func (t *Table) RequiresChallenge(merchantID string, amount decimal.Decimal) bool {
	return amount.GreaterThan(t.Threshold(merchantID))
}

// Evaluate implements Evaluator.
func (t *Table) Evaluate(ctx context.Context, merchantID string, amount decimal.Decimal) Decision {
	th := t.Threshold(merchantID)
	return Decision{RequiresChallenge: amount.GreaterThan(th), Threshold: th}
}

// Default returns the global default threshold.
func (t *Table) Default() decimal.Decimal {
	return t.defaultThreshold
}

// Merchants returns a copy of the per-merchant entries.
func (t *Table) Merchants() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.merchants))
	for k, v := range t.merchants {
		out[k] = v
	}
	return out
}

// ParseThresholds parses "merchant=amount" pairs separated by commas (e.g. "m1=1000,m2=250.50").
// Empty input yields an empty map. Negative amounts are rejected.
func ParseThresholds(s string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("policy: invalid threshold entry %q, want merchant=amount", part)
		}
		amt, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("policy: invalid threshold for %q: %w", k, err)
		}
		if amt.IsNegative() {
			return nil, fmt.Errorf("policy: threshold for %q must not be negative", k)
		}
		out[k] = amt
	}
	return out, nil
}
