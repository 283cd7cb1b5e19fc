package service

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// State is an order's position in the authorization flow.
type State int

const (
	StateIdle State = iota
	StateApproved
	StateChallengeRequired
	StateChallengeSent
	StateVerified
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApproved:
		return "approved"
	case StateChallengeRequired:
		return "challenge_required"
	case StateChallengeSent:
		return "challenge_sent"
	case StateVerified:
		return "verified"
	default:
		return "unknown"
	}
}

type orderState struct {
	state      State
	merchantID string
	amount     decimal.Decimal
	updatedAt  time.Time
}

// stateTable tracks per-order state. Entries are advisory: the challenge store is the authority on
// whether a code is live.
type stateTable struct {
	mu sync.Mutex
	m  map[string]orderState
}

func newStateTable() *stateTable {
	return &stateTable{m: make(map[string]orderState)}
}

func (t *stateTable) get(orderID string) (orderState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.m[orderID]
	return s, ok
}

// set records st for orderID. Empty merchantID or zero amount keep the previous values.
func (t *stateTable) set(orderID string, st State, merchantID string, amount decimal.Decimal, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.m[orderID]
	if merchantID == "" {
		merchantID = prev.merchantID
	}
	if amount.IsZero() {
		amount = prev.amount
	}
	t.m[orderID] = orderState{state: st, merchantID: merchantID, amount: amount, updatedAt: now}
}

// purge drops entries not updated since before and returns how many were removed.
func (t *stateTable) purge(before time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, s := range t.m {
		if s.updatedAt.Before(before) {
			delete(t.m, k)
			n++
		}
	}
	return n
}
