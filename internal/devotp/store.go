// Package devotp keeps plain one-time codes by order ID so a developer can fetch them from
// GET /dev/otp/{orderId} instead of reading server logs. Never wired in production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store is the dev-mode code mailbox written by delivery.DevStoreDeliverer.
type Store interface {
	// Put records code for orderID until expiresAt. A resend replaces the previous code.
	Put(ctx context.Context, orderID, code string, expiresAt time.Time)
	// Get returns the live code for orderID.
	Get(ctx context.Context, orderID string) (code string, ok bool)
}

type issued struct {
	code      string
	expiresAt time.Time
}

func (i issued) liveAt(now time.Time) bool {
	return i.expiresAt.After(now)
}

// MemoryStore is the in-process Store. Expired codes are dropped on read and by PurgeExpired.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]issued
	nowF  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes: make(map[string]issued),
		nowF:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(ctx context.Context, orderID, code string, expiresAt time.Time) {
	s.mu.Lock()
	s.codes[orderID] = issued{code: code, expiresAt: expiresAt}
	s.mu.Unlock()
}

func (s *MemoryStore) Get(ctx context.Context, orderID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.codes[orderID]
	if !ok {
		return "", false
	}
	if !i.liveAt(s.nowF()) {
		delete(s.codes, orderID)
		return "", false
	}
	return i.code, true
}

// PurgeExpired drops codes nobody fetched before they expired and returns how many were dropped.
func (s *MemoryStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	n := 0
	for orderID, i := range s.codes {
		if !i.liveAt(now) {
			delete(s.codes, orderID)
			n++
		}
	}
	return n
}

// Len returns the number of codes held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
