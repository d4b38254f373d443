package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/repo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine distributes one taker event across resting orders: price/time
// priority selection, greedy allocation, and all ledger bookkeeping (cash,
// holds, positions, order state, executions) in one transaction. Book
// mutations happen only after the transaction commits; the reconciler
// heals the projection if they fail.
type Engine struct {
	ledger        repo.Ledger
	book          BookStore
	queue         EventQueue
	notifier      Notifier
	logger        *zap.Logger
	maxCandidates int
}

func NewEngine(ledger repo.Ledger, book BookStore, queue EventQueue, notifier Notifier, logger *zap.Logger, maxCandidates int) *Engine {
	return &Engine{
		ledger:        ledger,
		book:          book,
		queue:         queue,
		notifier:      notifier,
		logger:        logger,
		maxCandidates: maxCandidates,
	}
}

// allocation pairs a book candidate with the taker quantity assigned to it.
type allocation struct {
	entry *models.BookEntry
	qty   int64
}

// bookOp is a projection mutation deferred until after the ledger commit.
type bookOp struct {
	entry     *models.BookEntry
	remaining int64 // new remaining quantity; <= 0 removes the entry
	done      bool  // order left the book for good, drop its subscription ref
}

// Distribute matches one fill event against the book and returns the
// executions created. An error means the ledger was not mutated and the
// event is safe to retry.
func (e *Engine) Distribute(ctx context.Context, stockCode string, ev *models.FillEvent) ([]*models.Execution, error) {
	if ev.Quantity <= 0 {
		return nil, nil
	}

	entries, err := e.book.FetchMatchingEntries(ctx, stockCode, ev.Side, ev.Price, e.maxCandidates)
	if err != nil {
		e.logger.Error("book fetch failed", zap.String("stock", stockCode), zap.Error(err))
		return nil, err
	}

	sortByPriority(entries, ev.Side)

	// Greedy allocation in priority order.
	var allocs []allocation
	var stale []*models.BookEntry
	unfilled := ev.Quantity
	for _, entry := range entries {
		if unfilled == 0 {
			break
		}
		if entry.Remaining <= 0 {
			stale = append(stale, entry)
			continue
		}
		qty := entry.Remaining
		if qty > unfilled {
			qty = unfilled
		}
		allocs = append(allocs, allocation{entry: entry, qty: qty})
		unfilled -= qty
	}

	residual := unfilled
	var execs []*models.Execution
	var ops []bookOp

	if len(allocs) > 0 {
		err = e.ledger.WithinTx(ctx, func(tx repo.LedgerTx) error {
			accounts, err := tx.LockAccounts(ctx, accountIDs(allocs))
			if err != nil {
				return err
			}

			for _, al := range allocs {
				exec, op, backToQueue, err := e.fillOne(ctx, tx, accounts, ev, al)
				if err != nil {
					return err
				}
				residual += backToQueue
				ops = append(ops, op)
				if exec != nil {
					execs = append(execs, exec)
				}
			}
			return nil
		})
		if err != nil {
			e.logger.Error("distribution aborted", zap.String("stock", stockCode),
				zap.String("event", ev.ID), zap.Error(err))
			return nil, err
		}
	}

	// Ledger is committed; the projection follows. Failures here leave a
	// ghost entry at worst, which the reconciler purges.
	e.applyBookOps(ctx, stockCode, ops, stale)

	for _, exec := range execs {
		if err := e.notifier.ExecutionFilled(ctx, exec); err != nil {
			e.logger.Warn("execution notification failed",
				zap.String("execution", exec.ID), zap.Error(err))
		}
	}

	if residual > 0 {
		if err := e.queue.Push(ctx, stockCode, ev.Residual(residual)); err != nil {
			e.logger.Error("residual re-queue failed", zap.String("stock", stockCode),
				zap.Int64("residual", residual), zap.Error(err))
		}
	}

	return execs, nil
}

// fillOne applies a single allocation inside the transaction. backToQueue
// is the allocated quantity that could not be filled and must return to
// the event queue.
func (e *Engine) fillOne(ctx context.Context, tx repo.LedgerTx, accounts map[string]*models.Account, ev *models.FillEvent, al allocation) (exec *models.Execution, op bookOp, backToQueue int64, err error) {
	entry := al.entry
	drop := bookOp{entry: entry, remaining: 0, done: true}

	// The book is only a projection: re-read the order under the account
	// lock so a racing cancellation or fill cannot be double-applied.
	o, err := tx.OrderForUpdate(ctx, entry.OrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, drop, al.qty, nil
	}
	if err != nil {
		return nil, bookOp{}, 0, err
	}
	if !o.Active() {
		return nil, drop, al.qty, nil
	}
	if !priceCompatible(o, ev) {
		// The index score drifted from the real limit price. Purge the
		// entry rather than fill outside the order's limit.
		e.logger.Error("price mismatch between book and ledger, skipping order",
			zap.String("order", o.ID), zap.String("limit", o.Price.String()),
			zap.String("print", ev.Price.String()))
		return nil, drop, al.qty, nil
	}

	fillQty := al.qty
	if o.Remaining() < fillQty {
		backToQueue += fillQty - o.Remaining()
		fillQty = o.Remaining()
	}
	if fillQty <= 0 {
		return nil, drop, al.qty, nil
	}

	acct, ok := accounts[o.AccountID]
	if !ok {
		// Book entry named one account, the ledger another. Corrupt
		// projection; drop it and move on.
		e.logger.Error("account mismatch between book and ledger",
			zap.String("order", o.ID), zap.String("bookAccount", entry.AccountID))
		return nil, drop, backToQueue + fillQty, nil
	}

	now := time.Now()
	cancelRemainder := false

	if o.Side == models.Buy {
		// Affordability is checked at fill time: holds are soft
		// reservations and cash may have drifted since placement.
		affordable := affordableQty(acct.Cash, ev.Price)
		if affordable <= 0 {
			if err := e.cancelUnaffordable(ctx, tx, o); err != nil {
				return nil, bookOp{}, 0, err
			}
			// The entire requested allocation goes back to the queue.
			return nil, drop, backToQueue + fillQty, nil
		}
		if affordable < fillQty {
			// Fill what the cash covers, cancel the order for the rest.
			// The unaffordable slice is consumed, not re-queued.
			fillQty = affordable
			cancelRemainder = true
		}

		cost := ev.Price.Mul(decimal.NewFromInt(fillQty))

		hold, err := tx.HoldForOrder(ctx, o.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, bookOp{}, 0, err
		}
		if hold == nil || hold.Status != models.HoldActive || hold.Amount.LessThan(cost) {
			// A fill must never drive a hold negative. Fatal for this
			// order only; the distribution continues.
			e.logger.Error("hold invariant violated, skipping order",
				zap.String("order", o.ID))
			return nil, drop, backToQueue + fillQty, nil
		}

		acct.Cash = acct.Cash.Sub(cost)
		if err := tx.AdjustCash(ctx, o.AccountID, cost.Neg()); err != nil {
			return nil, bookOp{}, 0, err
		}
		if err := tx.ReduceHold(ctx, o.ID, cost); err != nil {
			return nil, bookOp{}, 0, err
		}

		pos, err := tx.PositionForUpdate(ctx, o.AccountID, o.StockCode)
		if err != nil {
			return nil, bookOp{}, 0, err
		}
		if pos == nil {
			pos = &models.Position{AccountID: o.AccountID, StockCode: o.StockCode, AvgCost: decimal.Zero}
		}
		pos.ApplyBuy(ev.Price, fillQty)
		if err := tx.SavePosition(ctx, pos); err != nil {
			return nil, bookOp{}, 0, err
		}
	} else {
		// SELL: shares were reserved at placement, no affordability check.
		pos, err := tx.PositionForUpdate(ctx, o.AccountID, o.StockCode)
		if err != nil {
			return nil, bookOp{}, 0, err
		}
		if pos == nil || pos.Held < fillQty || pos.Quantity < fillQty {
			e.logger.Error("position invariant violated, skipping order",
				zap.String("order", o.ID))
			return nil, drop, backToQueue + fillQty, nil
		}

		proceeds := ev.Price.Mul(decimal.NewFromInt(fillQty))
		acct.Cash = acct.Cash.Add(proceeds)
		if err := tx.AdjustCash(ctx, o.AccountID, proceeds); err != nil {
			return nil, bookOp{}, 0, err
		}

		pos.ApplySell(fillQty, now)
		if err := tx.SavePosition(ctx, pos); err != nil {
			return nil, bookOp{}, 0, err
		}
	}

	o.Filled += fillQty
	status := models.PartiallyFilled
	if o.Filled == o.Quantity {
		status = models.Filled
	}
	if err := tx.UpdateOrderFill(ctx, o.ID, o.Filled, status); err != nil {
		return nil, bookOp{}, 0, err
	}

	switch {
	case cancelRemainder:
		if err := tx.CancelOrder(ctx, o.ID); err != nil {
			return nil, bookOp{}, 0, err
		}
		if o.Side == models.Buy {
			if err := tx.ReleaseHold(ctx, o.ID); err != nil {
				return nil, bookOp{}, 0, err
			}
		}
		op = bookOp{entry: entry, remaining: 0, done: true}
	case status == models.Filled:
		// Fully filled: refund whatever the hold still carries (limit
		// price above the print price leaves a residue).
		if o.Side == models.Buy {
			if err := tx.ReleaseHold(ctx, o.ID); err != nil {
				return nil, bookOp{}, 0, err
			}
		}
		op = bookOp{entry: entry, remaining: 0, done: true}
	default:
		op = bookOp{entry: entry, remaining: o.Remaining()}
	}

	exec = &models.Execution{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		AccountID:  o.AccountID,
		StockCode:  o.StockCode,
		Side:       o.Side,
		Price:      ev.Price,
		Quantity:   fillQty,
		ExecutedAt: now,
	}
	if err := tx.InsertExecution(ctx, exec); err != nil {
		return nil, bookOp{}, 0, err
	}
	return exec, op, backToQueue, nil
}

// cancelUnaffordable cancels a BUY order whose account can no longer pay
// for a single unit, reversing its hold. A normal outcome, not an error.
func (e *Engine) cancelUnaffordable(ctx context.Context, tx repo.LedgerTx, o *models.Order) error {
	if err := tx.CancelOrder(ctx, o.ID); err != nil {
		return err
	}
	if err := tx.ReleaseHold(ctx, o.ID); err != nil {
		return err
	}
	e.logger.Info("order cancelled for insufficient funds",
		zap.String("order", o.ID), zap.String("account", o.AccountID))
	return nil
}

func (e *Engine) applyBookOps(ctx context.Context, stockCode string, ops []bookOp, stale []*models.BookEntry) {
	for _, op := range ops {
		var err error
		if op.remaining <= 0 {
			err = e.book.RemoveOrder(ctx, op.entry.OrderID, stockCode, op.entry.Side)
		} else {
			err = e.book.UpdateRemaining(ctx, op.entry.OrderID, stockCode, op.entry.Side, op.remaining)
		}
		if err != nil {
			e.logger.Error("book update failed after commit, reconciler will heal",
				zap.String("order", op.entry.OrderID), zap.Error(err))
			continue
		}
		if op.done {
			if err := e.book.DecrSubscribers(ctx, stockCode); err != nil {
				e.logger.Warn("subscriber decrement failed", zap.String("stock", stockCode), zap.Error(err))
			}
		}
	}
	for _, entry := range stale {
		if err := e.book.RemoveOrder(ctx, entry.OrderID, stockCode, entry.Side); err != nil {
			e.logger.Error("stale entry purge failed",
				zap.String("order", entry.OrderID), zap.Error(err))
		}
	}
}

// sortByPriority orders candidates best price first (highest bid for a
// SELL print, lowest ask for a BUY print), then by creation time ascending.
// Strict FIFO at equal price is the engine's core correctness property.
func sortByPriority(entries []*models.BookEntry, takerSide models.OrderSide) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Price.Equal(b.Price) {
			if takerSide == models.Sell {
				return a.Price.GreaterThan(b.Price)
			}
			return a.Price.LessThan(b.Price)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// priceCompatible reports whether the resting order's limit admits the
// print price: a resting BUY fills at-or-below its limit, a resting SELL
// at-or-above.
func priceCompatible(o *models.Order, ev *models.FillEvent) bool {
	if o.Side == models.Buy {
		return !o.Price.LessThan(ev.Price)
	}
	return !o.Price.GreaterThan(ev.Price)
}

// affordableQty returns the whole-unit quantity the cash balance covers.
func affordableQty(cash, price decimal.Decimal) int64 {
	if cash.Sign() <= 0 || price.Sign() <= 0 {
		return 0
	}
	return cash.Div(price).Floor().IntPart()
}

func accountIDs(allocs []allocation) []string {
	seen := make(map[string]bool, len(allocs))
	var ids []string
	for _, al := range allocs {
		if !seen[al.entry.AccountID] {
			seen[al.entry.AccountID] = true
			ids = append(ids, al.entry.AccountID)
		}
	}
	return ids
}
