package repository

import (
	"context"
	"sort"
	"sync"

	"payshield/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByMerchant returns up to limit entries for the merchant, newest first.
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.AuditLog, error)
}

// MemoryRepository keeps audit logs in memory. Used when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditLog
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Create implements Repository.
func (m *MemoryRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	m.mu.Lock()
	m.entries = append(m.entries, *a)
	m.mu.Unlock()
	return nil
}

// ListByMerchant implements Repository.
func (m *MemoryRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	out := []*domain.AuditLog{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].MerchantID == merchantID {
			e := m.entries[i]
			out = append(out, &e)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
