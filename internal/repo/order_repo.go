package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
)

type OrderRepo struct{ db *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) Insert(ctx context.Context, tx *sql.Tx, o *models.Order) error {
	q := `
INSERT INTO orders(id, account_id, stock_code, side, price, quantity, filled, status)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING created_at, updated_at`
	return tx.QueryRowContext(ctx, q,
		o.ID, o.AccountID, o.StockCode, o.Side, o.Price,
		o.Quantity, o.Filled, o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Order, error) {
	q := `
SELECT id, account_id, stock_code, side, price, quantity, filled, status, created_at, updated_at, cancelled_at
FROM orders WHERE id=$1 FOR UPDATE`
	row := tx.QueryRowContext(ctx, q, id)

	var o models.Order
	if err := row.Scan(&o.ID, &o.AccountID, &o.StockCode, &o.Side, &o.Price,
		&o.Quantity, &o.Filled, &o.Status,
		&o.CreatedAt, &o.UpdatedAt, &o.CancelledAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) UpdateFill(ctx context.Context, tx *sql.Tx, id string, newFilled int64, newStatus models.OrderStatus) error {
	q := `UPDATE orders SET filled=$2, status=$3, updated_at=NOW() WHERE id=$1`
	_, err := tx.ExecContext(ctx, q, id, newFilled, newStatus)
	return err
}

func (r *OrderRepo) Cancel(ctx context.Context, tx *sql.Tx, id string) error {
	q := `UPDATE orders SET status='CANCELLED', cancelled_at=NOW(), updated_at=NOW() WHERE id=$1`
	_, err := tx.ExecContext(ctx, q, id)
	return err
}

func (r *OrderRepo) GetByAccount(ctx context.Context, accountID string, status string) ([]*models.Order, error) {
	q := `
SELECT id, account_id, stock_code, side, price, quantity, filled, status, created_at, updated_at, cancelled_at
FROM orders
WHERE account_id=$1 AND ($2='' OR status=$2)
ORDER BY created_at DESC
LIMIT 200`
	rows, err := r.db.QueryContext(ctx, q, accountID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListOpen pages through non-terminal orders created after the cutoff, for
// missing-order recovery.
func (r *OrderRepo) ListOpen(ctx context.Context, since time.Time, limit, offset int) ([]*models.Order, error) {
	q := `
SELECT id, account_id, stock_code, side, price, quantity, filled, status, created_at, updated_at, cancelled_at
FROM orders
WHERE status IN ('PENDING','PARTIALLY_FILLED') AND created_at >= $1
ORDER BY created_at ASC
LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, since, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// TerminalIDs filters the given ids down to those whose order is already
// FILLED or CANCELLED, for ghost-order purging.
func (r *OrderRepo) TerminalIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT id FROM orders WHERE id = ANY($1) AND status IN ('FILLED','CANCELLED')`
	rows, err := r.db.QueryContext(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanOrders(rows *sql.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.AccountID, &o.StockCode, &o.Side, &o.Price,
			&o.Quantity, &o.Filled, &o.Status,
			&o.CreatedAt, &o.UpdatedAt, &o.CancelledAt); err != nil {
			return nil, err
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}
