package repository

import (
	"context"
	"database/sql"

	"payshield/backend/internal/audit/domain"
)

// PostgresRepository stores audit logs in the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, merchant_id, action, resource, ip, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.MerchantID, a.Action, a.Resource, a.IP, meta, a.CreatedAt)
	return err
}

// ListByMerchant returns audit logs for the merchant, newest first.
func (r *PostgresRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, merchant_id, action, resource, ip, metadata, created_at
FROM audit_logs WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`,
		merchantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*domain.AuditLog{}
	for rows.Next() {
		var (
			a    domain.AuditLog
			meta sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.MerchantID, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Metadata = meta.String
		out = append(out, &a)
	}
	return out, rows.Err()
}
