// Package repository persists receipts.
package repository

import (
	"context"
	"errors"
	"sync"

	"payshield/backend/internal/receipt/domain"
)

// ErrDuplicate is returned when a receipt with the same proof ID already exists.
var ErrDuplicate = errors.New("receipt: duplicate proof id")

// Repository stores receipts. Receipts are written once and never updated or deleted.
type Repository interface {
	Save(ctx context.Context, r *domain.Receipt) error
	// GetByProofID returns the receipt, or nil if not found. Errors are storage failures only.
	GetByProofID(ctx context.Context, proofID string) (*domain.Receipt, error)
	// ListByMerchant returns up to limit receipts for the merchant, newest first.
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.Receipt, error)
}

// MemoryRepository is an in-memory Repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Receipt
	order []string
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Receipt)}
}

// Save implements Repository.
func (m *MemoryRepository) Save(ctx context.Context, r *domain.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[r.ProofID]; ok {
		return ErrDuplicate
	}
	m.byID[r.ProofID] = clone(r)
	m.order = append(m.order, r.ProofID)
	return nil
}

// GetByProofID implements Repository.
func (m *MemoryRepository) GetByProofID(ctx context.Context, proofID string) (*domain.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[proofID]
	if !ok {
		return nil, nil
	}
	return clone(r), nil
}

// ListByMerchant implements Repository.
func (m *MemoryRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.Receipt{}
	for i := len(m.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		r := m.byID[m.order[i]]
		if r.MerchantID != merchantID {
			continue
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func clone(r *domain.Receipt) *domain.Receipt {
	cp := *r
	if r.LedgerRef != nil {
		ref := *r.LedgerRef
		cp.LedgerRef = &ref
	}
	return &cp
}
