package repo

import (
	"context"
	"database/sql"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
)

type PositionRepo struct{ db *sql.DB }

func NewPositionRepo(db *sql.DB) *PositionRepo { return &PositionRepo{db: db} }

// GetForUpdate returns nil (no error) when the account has never held the
// stock. Soft-retired rows are returned as-is so a BUY fill can reactivate
// them.
func (r *PositionRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, accountID, stockCode string) (*models.Position, error) {
	q := `
SELECT account_id, stock_code, quantity, held, avg_cost, updated_at, deleted_at
FROM positions WHERE account_id=$1 AND stock_code=$2 FOR UPDATE`
	row := tx.QueryRowContext(ctx, q, accountID, stockCode)

	var p models.Position
	err := row.Scan(&p.AccountID, &p.StockCode, &p.Quantity, &p.Held, &p.AvgCost, &p.UpdatedAt, &p.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PositionRepo) Upsert(ctx context.Context, tx *sql.Tx, p *models.Position) error {
	q := `
INSERT INTO positions(account_id, stock_code, quantity, held, avg_cost, deleted_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (account_id, stock_code) DO UPDATE
SET quantity=$3, held=$4, avg_cost=$5, deleted_at=$6, updated_at=NOW()`
	_, err := tx.ExecContext(ctx, q, p.AccountID, p.StockCode, p.Quantity, p.Held, p.AvgCost, p.DeletedAt)
	return err
}

func (r *PositionRepo) AdjustHeld(ctx context.Context, tx *sql.Tx, accountID, stockCode string, delta int64) error {
	q := `UPDATE positions SET held = held + $3, updated_at = NOW() WHERE account_id=$1 AND stock_code=$2`
	_, err := tx.ExecContext(ctx, q, accountID, stockCode, delta)
	return err
}
