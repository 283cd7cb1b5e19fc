package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"payshield/backend/internal/ledger"
	"payshield/backend/internal/receipt/domain"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresRepository implements Repository on the receipts table.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns a receipt repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save implements Repository.
func (r *PostgresRepository) Save(ctx context.Context, rec *domain.Receipt) error {
	var txHash, url sql.NullString
	if rec.LedgerRef != nil {
		txHash = sql.NullString{String: rec.LedgerRef.TxHash, Valid: true}
		url = sql.NullString{String: rec.LedgerRef.ViewerURL, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO receipts
(proof_id, merchant_id, order_id, method, timestamp_ms, approval_hash, amount, payment_ref, ledger_tx_hash, ledger_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ProofID, rec.MerchantID, rec.OrderID, rec.Method, rec.Timestamp, rec.ApprovalHash,
		rec.Amount.String(), rec.PaymentRef, txHash, url)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

const selectReceipt = `SELECT proof_id, merchant_id, order_id, method, timestamp_ms, approval_hash, amount::text,
payment_ref, ledger_tx_hash, ledger_url FROM receipts`

// GetByProofID implements Repository.
func (r *PostgresRepository) GetByProofID(ctx context.Context, proofID string) (*domain.Receipt, error) {
	rec, err := scanReceipt(r.db.QueryRowContext(ctx, selectReceipt+` WHERE proof_id = $1`, proofID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListByMerchant implements Repository.
func (r *PostgresRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.Receipt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, selectReceipt+` WHERE merchant_id = $1 ORDER BY created_at DESC, timestamp_ms DESC LIMIT $2`, merchantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*domain.Receipt{}
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(s scanner) (*domain.Receipt, error) {
	var (
		rec          domain.Receipt
		amount       string
		txHash, link sql.NullString
	)
	if err := s.Scan(&rec.ProofID, &rec.MerchantID, &rec.OrderID, &rec.Method, &rec.Timestamp, &rec.ApprovalHash,
		&amount, &rec.PaymentRef, &txHash, &link); err != nil {
		return nil, err
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	rec.Amount = amt
	if txHash.Valid {
		rec.LedgerRef = &ledger.Ref{TxHash: txHash.String, ViewerURL: link.String}
	}
	return &rec, nil
}
