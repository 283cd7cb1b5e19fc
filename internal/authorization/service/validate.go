package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"payshield/backend/internal/mfa"
)

const maxMerchantIDLen = 100

var (
	orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,100}$`)
	maxAmount      = decimal.RequireFromString("999999.99")
	currencies     = map[string]bool{"usd": true, "eur": true, "gbp": true, "jpy": true, "cad": true, "aud": true}
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func validateMerchantID(merchantID string) error {
	if strings.TrimSpace(merchantID) == "" {
		return invalid("merchant id is required")
	}
	if len(merchantID) > maxMerchantIDLen {
		return invalid("merchant id is too long")
	}
	return nil
}

func validateOrderID(orderID string) error {
	if !orderIDPattern.MatchString(orderID) {
		return invalid("order id must be 3-100 characters of letters, digits, '-' or '_'")
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount must be greater than 0")
	}
	if amount.GreaterThan(maxAmount) {
		return invalid("amount must not exceed %s", maxAmount.StringFixed(2))
	}
	return nil
}

// validateCurrency accepts an empty currency (not supplied).
func validateCurrency(currency string) error {
	if currency == "" || currencies[strings.ToLower(currency)] {
		return nil
	}
	return invalid("unsupported currency %q", currency)
}

func validateCode(code string) error {
	if !mfa.ValidOTPFormat(code) {
		return invalid("code must be 6 digits")
	}
	return nil
}
