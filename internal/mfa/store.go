// Package mfa implements the one-time-code challenge lifecycle: generation, hashing, and a keyed
// store that issues and verifies codes per order.
package mfa

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"payshield/backend/internal/mfa/domain"
)

// DefaultChallengeTTL is how long an issued code stays valid.
const DefaultChallengeTTL = 5 * time.Minute

// ExpiredGrace is how long an expired challenge is retained so a late verify reports Expired
// instead of NotFound. Both stores honour it.
const ExpiredGrace = time.Hour

// Outcome is the result of verifying a code against the live challenge for an order.
type Outcome int

// Outcomes in priority order.
const (
	OutcomeNotFound Outcome = iota + 1
	OutcomeExpired
	OutcomeMismatch
	OutcomeVerified
)

// String returns the stable wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeExpired:
		return "expired"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// Result is returned by Verify. Amount and IssuedAt are set whenever a challenge existed
// (Expired, Mismatch, Verified).
type Result struct {
	Outcome  Outcome
	Amount   decimal.Decimal
	IssuedAt time.Time
}

// Store issues and verifies one-time codes keyed by order ID.
// Verify must be atomic per order: exactly one caller may observe OutcomeVerified for a code.
type Store interface {
	// Issue generates a new code for orderID, replacing any live challenge, and returns the plain
	// code for out-of-band delivery together with its expiry.
	Issue(ctx context.Context, orderID string, amount decimal.Decimal) (code string, expiresAt time.Time, err error)
	// Verify checks code against the live challenge for orderID. Expired challenges are deleted;
	// mismatches leave the challenge in place; a match consumes it.
	Verify(ctx context.Context, orderID, code string) (Result, error)
}

// MemoryStore is an in-memory Store. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]domain.Challenge
	ttl  time.Duration
	nowF func() time.Time
	genF func() (string, error)
}

// NewMemoryStore returns an in-memory challenge store with the given TTL (DefaultChallengeTTL if <= 0).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &MemoryStore{
		m:    make(map[string]domain.Challenge),
		ttl:  ttl,
		nowF: func() time.Time { return time.Now().UTC() },
		genF: GenerateOTP,
	}
}

// Issue stores a fresh challenge for orderID until now+TTL.
func (s *MemoryStore) Issue(ctx context.Context, orderID string, amount decimal.Decimal) (string, time.Time, error) {
	code, err := s.genF()
	if err != nil {
		return "", time.Time{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	c := domain.Challenge{
		OrderID:   orderID,
		CodeHash:  HashOTP(code),
		Amount:    amount,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.m[orderID] = c
	return code, c.ExpiresAt, nil
}

// Verify checks code for orderID. The lookup, expiry check, comparison, and delete happen under one lock.
func (s *MemoryStore) Verify(ctx context.Context, orderID, code string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[orderID]
	if !ok {
		return Result{Outcome: OutcomeNotFound}, nil
	}
	res := Result{Amount: c.Amount, IssuedAt: c.IssuedAt}
	if c.Expired(s.nowF()) {
		delete(s.m, orderID)
		res.Outcome = OutcomeExpired
		return res, nil
	}
	if !OTPEqual(code, c.CodeHash) {
		res.Outcome = OutcomeMismatch
		return res, nil
	}
	delete(s.m, orderID)
	res.Outcome = OutcomeVerified
	return res, nil
}

// PurgeExpired removes challenges that expired more than grace ago and returns how many were removed.
// Challenges inside the grace window are kept so a late verify still reports Expired.
func (s *MemoryStore) PurgeExpired(grace time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.nowF().Add(-grace)
	n := 0
	for id, c := range s.m {
		if c.ExpiresAt.Before(cutoff) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored challenges, live or expired.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
