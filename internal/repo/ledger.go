package repo

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/shopspring/decimal"
)

// Ledger is the durable store of orders, holds, balances, positions and
// executions. It is the single source of truth; the Redis book is only a
// projection of it.
type Ledger interface {
	// WithinTx runs fn in one transaction; any error rolls everything back.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error

	ListOpenOrders(ctx context.Context, since time.Time, limit, offset int) ([]*models.Order, error)
	TerminalOrderIDs(ctx context.Context, ids []string) ([]string, error)
	OrdersByAccount(ctx context.Context, accountID, status string) ([]*models.Order, error)
	ExecutionsByAccount(ctx context.Context, accountID string, limit int) ([]*models.Execution, error)
}

// LedgerTx is the mutation surface available inside one transaction.
type LedgerTx interface {
	// LockAccounts takes the per-account exclusive locks, always in sorted
	// id order so concurrent distributions cannot deadlock.
	LockAccounts(ctx context.Context, ids []string) (map[string]*models.Account, error)
	AdjustCash(ctx context.Context, accountID string, delta decimal.Decimal) error

	InsertOrder(ctx context.Context, o *models.Order) error
	OrderForUpdate(ctx context.Context, id string) (*models.Order, error)
	UpdateOrderFill(ctx context.Context, id string, filled int64, status models.OrderStatus) error
	CancelOrder(ctx context.Context, id string) error

	InsertHold(ctx context.Context, h *models.Hold) error
	HoldForOrder(ctx context.Context, orderID string) (*models.Hold, error)
	ReduceHold(ctx context.Context, orderID string, amount decimal.Decimal) error
	ReleaseHold(ctx context.Context, orderID string) error

	PositionForUpdate(ctx context.Context, accountID, stockCode string) (*models.Position, error)
	SavePosition(ctx context.Context, p *models.Position) error
	AdjustPositionHeld(ctx context.Context, accountID, stockCode string, delta int64) error

	InsertExecution(ctx context.Context, e *models.Execution) error
}

type SQLLedger struct {
	db         *sql.DB
	orders     *OrderRepo
	accounts   *AccountRepo
	holds      *HoldRepo
	positions  *PositionRepo
	executions *ExecutionRepo
}

func NewSQLLedger(db *sql.DB) *SQLLedger {
	return &SQLLedger{
		db:         db,
		orders:     NewOrderRepo(db),
		accounts:   NewAccountRepo(db),
		holds:      NewHoldRepo(db),
		positions:  NewPositionRepo(db),
		executions: NewExecutionRepo(db),
	}
}

func (l *SQLLedger) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&sqlLedgerTx{tx: tx, l: l}); err != nil {
		return err
	}
	return tx.Commit()
}

func (l *SQLLedger) ListOpenOrders(ctx context.Context, since time.Time, limit, offset int) ([]*models.Order, error) {
	return l.orders.ListOpen(ctx, since, limit, offset)
}

func (l *SQLLedger) TerminalOrderIDs(ctx context.Context, ids []string) ([]string, error) {
	return l.orders.TerminalIDs(ctx, ids)
}

func (l *SQLLedger) OrdersByAccount(ctx context.Context, accountID, status string) ([]*models.Order, error) {
	return l.orders.GetByAccount(ctx, accountID, status)
}

func (l *SQLLedger) ExecutionsByAccount(ctx context.Context, accountID string, limit int) ([]*models.Execution, error) {
	return l.executions.GetByAccount(ctx, accountID, limit)
}

type sqlLedgerTx struct {
	tx *sql.Tx
	l  *SQLLedger
}

func (t *sqlLedgerTx) LockAccounts(ctx context.Context, ids []string) (map[string]*models.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	out := make(map[string]*models.Account, len(sorted))
	for _, id := range sorted {
		if _, ok := out[id]; ok {
			continue
		}
		a, err := t.l.accounts.GetForUpdate(ctx, t.tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

func (t *sqlLedgerTx) AdjustCash(ctx context.Context, accountID string, delta decimal.Decimal) error {
	return t.l.accounts.AdjustCash(ctx, t.tx, accountID, delta)
}

func (t *sqlLedgerTx) InsertOrder(ctx context.Context, o *models.Order) error {
	return t.l.orders.Insert(ctx, t.tx, o)
}

func (t *sqlLedgerTx) OrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return t.l.orders.GetForUpdate(ctx, t.tx, id)
}

func (t *sqlLedgerTx) UpdateOrderFill(ctx context.Context, id string, filled int64, status models.OrderStatus) error {
	return t.l.orders.UpdateFill(ctx, t.tx, id, filled, status)
}

func (t *sqlLedgerTx) CancelOrder(ctx context.Context, id string) error {
	return t.l.orders.Cancel(ctx, t.tx, id)
}

func (t *sqlLedgerTx) InsertHold(ctx context.Context, h *models.Hold) error {
	return t.l.holds.Insert(ctx, t.tx, h)
}

func (t *sqlLedgerTx) HoldForOrder(ctx context.Context, orderID string) (*models.Hold, error) {
	return t.l.holds.GetByOrderForUpdate(ctx, t.tx, orderID)
}

func (t *sqlLedgerTx) ReduceHold(ctx context.Context, orderID string, amount decimal.Decimal) error {
	return t.l.holds.Reduce(ctx, t.tx, orderID, amount)
}

func (t *sqlLedgerTx) ReleaseHold(ctx context.Context, orderID string) error {
	return t.l.holds.Release(ctx, t.tx, orderID)
}

func (t *sqlLedgerTx) PositionForUpdate(ctx context.Context, accountID, stockCode string) (*models.Position, error) {
	return t.l.positions.GetForUpdate(ctx, t.tx, accountID, stockCode)
}

func (t *sqlLedgerTx) SavePosition(ctx context.Context, p *models.Position) error {
	return t.l.positions.Upsert(ctx, t.tx, p)
}

func (t *sqlLedgerTx) AdjustPositionHeld(ctx context.Context, accountID, stockCode string, delta int64) error {
	return t.l.positions.AdjustHeld(ctx, t.tx, accountID, stockCode, delta)
}

func (t *sqlLedgerTx) InsertExecution(ctx context.Context, e *models.Execution) error {
	return t.l.executions.Insert(ctx, t.tx, e)
}
