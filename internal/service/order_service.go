package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/repo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidOrder       = errors.New("order must have positive price and quantity")
	ErrInsufficientCash   = errors.New("insufficient cash")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrOrderNotFound      = errors.New("order not found")
	ErrForbidden          = errors.New("order belongs to another account")
	ErrNotCancellable     = errors.New("order is not cancellable in its current status")
)

// OrderService owns the placeLimitOrder and cancelOrder paths: the ledger
// write is authoritative, the book write after commit is best-effort and
// healed by reconciliation if it is lost.
type OrderService struct {
	ledger repo.Ledger
	book   BookStore
	logger *zap.Logger
}

func NewOrderService(ledger repo.Ledger, book BookStore, logger *zap.Logger) *OrderService {
	return &OrderService{ledger: ledger, book: book, logger: logger}
}

// ---------------- LIST ORDERS ----------------

func (s *OrderService) ListOrders(ctx context.Context, accountID, status string) ([]*models.Order, error) {
	return s.ledger.OrdersByAccount(ctx, accountID, status)
}

func (s *OrderService) ListExecutions(ctx context.Context, accountID string, limit int) ([]*models.Execution, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.ledger.ExecutionsByAccount(ctx, accountID, limit)
}

// ---------------- PLACE LIMIT ORDER ----------------

func (s *OrderService) PlaceLimitOrder(ctx context.Context, accountID string, req PlaceOrderReq) (*models.Order, error) {
	if req.Price.Sign() <= 0 || req.Quantity <= 0 {
		return nil, ErrInvalidOrder
	}

	o := &models.Order{
		ID:        uuid.NewString(),
		AccountID: accountID,
		StockCode: req.StockCode,
		Side:      req.Side,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Filled:    0,
		Status:    models.Pending,
	}

	err := s.ledger.WithinTx(ctx, func(tx repo.LedgerTx) error {
		accounts, err := tx.LockAccounts(ctx, []string{accountID})
		if err != nil {
			return err
		}
		acct := accounts[accountID]

		switch req.Side {
		case models.Buy:
			cost := req.Price.Mul(decimal.NewFromInt(req.Quantity))
			if acct.Cash.LessThan(cost) {
				return ErrInsufficientCash
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			return tx.InsertHold(ctx, &models.Hold{
				OrderID:   o.ID,
				AccountID: accountID,
				Amount:    cost,
				Status:    models.HoldActive,
			})

		case models.Sell:
			pos, err := tx.PositionForUpdate(ctx, accountID, req.StockCode)
			if err != nil {
				return err
			}
			if pos == nil || pos.Available() < req.Quantity {
				return ErrInsufficientShares
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			return tx.AdjustPositionHeld(ctx, accountID, req.StockCode, req.Quantity)
		}
		return ErrInvalidOrder
	})
	if err != nil {
		return nil, err
	}

	// Register with the book after the ledger commit. A lost write here is
	// recovered by the next reconciliation pass.
	if err := s.book.AddOrder(ctx, o); err != nil {
		s.logger.Error("book insert failed, awaiting reconciliation",
			zap.String("order", o.ID), zap.Error(err))
	} else if err := s.book.IncrSubscribers(ctx, o.StockCode); err != nil {
		s.logger.Warn("subscriber increment failed", zap.String("stock", o.StockCode), zap.Error(err))
	}

	return o, nil
}

// ---------------- CANCEL ORDER ----------------

func (s *OrderService) CancelOrder(ctx context.Context, accountID, orderID string) error {
	var cancelled *models.Order

	err := s.ledger.WithinTx(ctx, func(tx repo.LedgerTx) error {
		// Account lock first: same lock order as the engine.
		if _, err := tx.LockAccounts(ctx, []string{accountID}); err != nil {
			return err
		}

		o, err := tx.OrderForUpdate(ctx, orderID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if o.AccountID != accountID {
			return ErrForbidden
		}
		if !o.Active() {
			return ErrNotCancellable
		}

		if o.Side == models.Buy {
			if err := tx.ReleaseHold(ctx, o.ID); err != nil {
				return err
			}
		} else if o.Remaining() > 0 {
			if err := tx.AdjustPositionHeld(ctx, accountID, o.StockCode, -o.Remaining()); err != nil {
				return err
			}
		}

		if err := tx.CancelOrder(ctx, o.ID); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.book.RemoveOrder(ctx, cancelled.ID, cancelled.StockCode, cancelled.Side); err != nil {
		s.logger.Error("book removal failed, awaiting reconciliation",
			zap.String("order", cancelled.ID), zap.Error(err))
	} else if err := s.book.DecrSubscribers(ctx, cancelled.StockCode); err != nil {
		s.logger.Warn("subscriber decrement failed", zap.String("stock", cancelled.StockCode), zap.Error(err))
	}

	return nil
}
