package repo

import (
	"context"
	"database/sql"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/shopspring/decimal"
)

type HoldRepo struct{ db *sql.DB }

func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

func (r *HoldRepo) Insert(ctx context.Context, tx *sql.Tx, h *models.Hold) error {
	q := `
INSERT INTO holds(order_id, account_id, amount, status)
VALUES($1,$2,$3,$4)
RETURNING updated_at`
	return tx.QueryRowContext(ctx, q, h.OrderID, h.AccountID, h.Amount, h.Status).
		Scan(&h.UpdatedAt)
}

func (r *HoldRepo) GetByOrderForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*models.Hold, error) {
	q := `
SELECT order_id, account_id, amount, status, updated_at
FROM holds WHERE order_id=$1 FOR UPDATE`
	row := tx.QueryRowContext(ctx, q, orderID)

	var h models.Hold
	if err := row.Scan(&h.OrderID, &h.AccountID, &h.Amount, &h.Status, &h.UpdatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

// Reduce decreases the held amount. The amount column never increases.
func (r *HoldRepo) Reduce(ctx context.Context, tx *sql.Tx, orderID string, amount decimal.Decimal) error {
	q := `UPDATE holds SET amount = amount - $2, updated_at = NOW() WHERE order_id=$1`
	_, err := tx.ExecContext(ctx, q, orderID, amount)
	return err
}

func (r *HoldRepo) Release(ctx context.Context, tx *sql.Tx, orderID string) error {
	q := `UPDATE holds SET amount = 0, status='RELEASED', updated_at = NOW() WHERE order_id=$1`
	_, err := tx.ExecContext(ctx, q, orderID)
	return err
}
