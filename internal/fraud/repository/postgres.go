// Package repository persists the fraud event log in Postgres.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"payshield/backend/internal/fraud"
	"payshield/backend/internal/fraud/domain"
)

// PostgresRepository implements fraud.Log on the fraud_events table.
type PostgresRepository struct {
	db *sql.DB
}

var _ fraud.Log = (*PostgresRepository)(nil)

// NewPostgresRepository returns a fraud event log backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertEvent = `INSERT INTO fraud_events (id, kind, merchant_id, order_id, amount, occurred_at, detail)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Append implements fraud.Log.
func (r *PostgresRepository) Append(ctx context.Context, e domain.Event) error {
	if err := fraud.CheckKind(e); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, insertEvent,
		e.ID, string(e.Kind), e.MerchantID, e.OrderID, e.Amount.String(), e.OccurredAt, e.Detail)
	return err
}

// seq orders rows by insertion; occurred_at alone can tie.
const selectSince = `SELECT id, kind, merchant_id, order_id, amount::text, occurred_at, detail
FROM fraud_events
WHERE occurred_at >= $1 AND ($2 = '' OR merchant_id = $2)
ORDER BY seq`

// Since implements fraud.Log.
func (r *PostgresRepository) Since(ctx context.Context, merchantID string, since time.Time) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, selectSince, since, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Event{}
	for rows.Next() {
		var (
			e      domain.Event
			kind   string
			amount string
		)
		if err := rows.Scan(&e.ID, &kind, &e.MerchantID, &e.OrderID, &amount, &e.OccurredAt, &e.Detail); err != nil {
			return nil, err
		}
		e.Kind = domain.Kind(kind)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		e.OccurredAt = e.OccurredAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Compact implements fraud.Log.
func (r *PostgresRepository) Compact(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fraud_events WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
