package fraud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"payshield/backend/internal/fraud/domain"
)

// ErrUnknownKind is returned by Append for an event whose Kind is not one of the domain kinds.
var ErrUnknownKind = errors.New("fraud: unknown event kind")

// CheckKind returns ErrUnknownKind, wrapped with the offending kind, unless e.Kind is valid.
func CheckKind(e domain.Event) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownKind, e.Kind)
	}
	return nil
}

// Log is the append-only fraud event log.
type Log interface {
	Append(ctx context.Context, e domain.Event) error
	// Since returns events with OccurredAt >= since in append order. An empty merchantID matches all merchants.
	Since(ctx context.Context, merchantID string, since time.Time) ([]domain.Event, error)
	// Compact removes events older than before and returns how many were removed.
	Compact(ctx context.Context, before time.Time) (int, error)
}

// MemoryLog is an in-memory Log. Readers get a copy, so they never observe a partial append.
type MemoryLog struct {
	mu     sync.RWMutex
	events []domain.Event
}

var _ Log = (*MemoryLog)(nil)

// NewMemoryLog returns an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append implements Log.
func (l *MemoryLog) Append(ctx context.Context, e domain.Event) error {
	if err := CheckKind(e); err != nil {
		return err
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	return nil
}

// Since implements Log.
func (l *MemoryLog) Since(ctx context.Context, merchantID string, since time.Time) ([]domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Event, 0, len(l.events))
	for _, e := range l.events {
		if merchantID != "" && e.MerchantID != merchantID {
			continue
		}
		if e.OccurredAt.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Compact implements Log.
func (l *MemoryLog) Compact(ctx context.Context, before time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := make([]domain.Event, 0, len(l.events))
	for _, e := range l.events {
		if !e.OccurredAt.Before(before) {
			kept = append(kept, e)
		}
	}
	removed := len(l.events) - len(kept)
	l.events = kept
	return removed, nil
}

// Len returns the number of stored events.
func (l *MemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
