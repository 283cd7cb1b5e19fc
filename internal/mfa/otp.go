package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
)

const otpDigits = 6

// otpSpace is 10^otpDigits; codes are drawn uniformly from [0, otpSpace).
var otpSpace = big.NewInt(1_000_000)

var otpFormat = regexp.MustCompile(`^[0-9]{6}$`)

// GenerateOTP returns a uniformly random 6-digit numeric OTP string, leading zeros preserved
// (e.g. "004213"). Uses crypto/rand.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// ValidOTPFormat reports whether s is exactly six ASCII digits.
func ValidOTPFormat(s string) bool {
	return otpFormat.MatchString(s)
}

// HashOTP returns a SHA-256 hash of the OTP string, hex-encoded.
func HashOTP(otp string) string {
	h := sha256.Sum256([]byte(otp))
	return hex.EncodeToString(h[:])
}

// OTPEqual performs constant-time comparison of the provided OTP's hash with the stored hash.
func OTPEqual(providedOTP, storedHash string) bool {
	providedHash := HashOTP(providedOTP)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
