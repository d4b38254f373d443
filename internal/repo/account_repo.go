package repo

import (
	"context"
	"database/sql"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/shopspring/decimal"
)

type AccountRepo struct{ db *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// Lock account row for update (IMPORTANT)
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Account, error) {
	q := `SELECT id, cash, updated_at FROM accounts WHERE id=$1 FOR UPDATE`
	row := tx.QueryRowContext(ctx, q, id)

	var a models.Account
	if err := row.Scan(&a.ID, &a.Cash, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) AdjustCash(ctx context.Context, tx *sql.Tx, id string, delta decimal.Decimal) error {
	q := `UPDATE accounts SET cash = cash + $2, updated_at = NOW() WHERE id=$1`
	_, err := tx.ExecContext(ctx, q, id, delta)
	return err
}
