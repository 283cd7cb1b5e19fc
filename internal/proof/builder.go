// Package proof builds approval proofs: a fresh random proof identifier plus a deterministic digest
// binding merchant, order, time, and verification method. The digest is the payload anchored on the ledger.
package proof

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// proofIDBytes is the number of random bytes in a proof identifier (128 bits).
	proofIDBytes = 16
	// fieldSeparator joins the hashed fields. Field order is fixed.
	fieldSeparator = "|"
)

// ErrInvalidArgument is returned when a required field is empty or the timestamp is not positive.
var ErrInvalidArgument = errors.New("proof: invalid argument")

// Proof is the output of Build.
type Proof struct {
	ProofID      string
	ApprovalHash string
}

// Build generates a new proof identifier and computes the approval hash for the given facts.
// timestamp is the verification instant in epoch milliseconds.
func Build(merchantID, orderID string, timestamp int64, method string) (Proof, error) {
	if err := validate(merchantID, orderID, timestamp, method); err != nil {
		return Proof{}, err
	}
	proofID, err := NewProofID()
	if err != nil {
		return Proof{}, err
	}
	h, err := ApprovalHash(merchantID, orderID, timestamp, method, proofID)
	if err != nil {
		return Proof{}, err
	}
	return Proof{ProofID: proofID, ApprovalHash: h}, nil
}

// NewProofID returns 16 cryptographically random bytes, hex-encoded.
func NewProofID() (string, error) {
	b := make([]byte, proofIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ApprovalHash returns the 0x-prefixed hex Keccak-256 digest of
// merchantID|orderID|timestamp|method|proofID. It is pure: equal inputs always give equal output.
func ApprovalHash(merchantID, orderID string, timestamp int64, method, proofID string) (string, error) {
	if err := validate(merchantID, orderID, timestamp, method); err != nil {
		return "", err
	}
	if proofID == "" {
		return "", ErrInvalidArgument
	}
	digest := Digest(merchantID, orderID, timestamp, method, proofID)
	return "0x" + hex.EncodeToString(digest[:]), nil
}

// Digest returns the raw 32-byte digest. Callers must validate inputs first.
func Digest(merchantID, orderID string, timestamp int64, method, proofID string) [32]byte {
	payload := strings.Join([]string{
		merchantID,
		orderID,
		strconv.FormatInt(timestamp, 10),
		method,
		proofID,
	}, fieldSeparator)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(payload))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Matches recomputes the approval hash from the five inputs and compares it with approvalHash
// (case-insensitive, with or without 0x prefix).
func Matches(approvalHash, merchantID, orderID string, timestamp int64, method, proofID string) bool {
	want, err := ApprovalHash(merchantID, orderID, timestamp, method, proofID)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimPrefix(want, "0x"), strings.TrimPrefix(strings.TrimPrefix(approvalHash, "0x"), "0X"))
}

// ParseHash decodes a 0x-prefixed (or bare) 64-character hex digest.
func ParseHash(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 64 {
		return out, ErrInvalidArgument
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, ErrInvalidArgument
	}
	copy(out[:], b)
	return out, nil
}

func validate(merchantID, orderID string, timestamp int64, method string) error {
	if merchantID == "" || orderID == "" || method == "" || timestamp <= 0 {
		return ErrInvalidArgument
	}
	return nil
}
