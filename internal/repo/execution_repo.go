package repo

import (
	"context"
	"database/sql"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
)

type ExecutionRepo struct{ db *sql.DB }

func NewExecutionRepo(db *sql.DB) *ExecutionRepo { return &ExecutionRepo{db: db} }

func (r *ExecutionRepo) Insert(ctx context.Context, tx *sql.Tx, e *models.Execution) error {
	q := `
INSERT INTO executions(id, order_id, account_id, stock_code, side, price, quantity, executed_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := tx.ExecContext(ctx, q,
		e.ID, e.OrderID, e.AccountID, e.StockCode, e.Side, e.Price, e.Quantity, e.ExecutedAt)
	return err
}

func (r *ExecutionRepo) GetByAccount(ctx context.Context, accountID string, limit int) ([]*models.Execution, error) {
	q := `
SELECT id, order_id, account_id, stock_code, side, price, quantity, executed_at
FROM executions WHERE account_id=$1
ORDER BY executed_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Execution
	for rows.Next() {
		var e models.Execution
		if err := rows.Scan(&e.ID, &e.OrderID, &e.AccountID, &e.StockCode,
			&e.Side, &e.Price, &e.Quantity, &e.ExecutedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
