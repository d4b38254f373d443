package service

import (
	"context"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/config"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/repo"
	"go.uber.org/zap"
)

// Reconciler heals drift between the ledger and the book projection:
// re-inserts recent open orders the book lost, and purges entries whose
// ledger order is already terminal. Both passes are idempotent and safe
// to run while matching is live, because fills are always driven by
// ledger state, never by the projection.
type Reconciler struct {
	ledger repo.Ledger
	book   BookStore
	logger *zap.Logger
	cfg    config.Matching
	stop   chan struct{}
	done   chan struct{}
}

func NewReconciler(ledger repo.Ledger, book BookStore, logger *zap.Logger, cfg config.Matching) *Reconciler {
	return &Reconciler{
		ledger: ledger,
		book:   book,
		logger: logger,
		cfg:    cfg,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (r *Reconciler) Start() {
	go r.loop()
}

func (r *Reconciler) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reconciler) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.RunOnce(context.Background())
		}
	}
}

// RunOnce executes one recovery pass and one purge pass.
func (r *Reconciler) RunOnce(ctx context.Context) {
	if err := r.recoverMissing(ctx); err != nil {
		r.logger.Error("missing-order recovery failed", zap.Error(err))
	}
	if err := r.purgeGhosts(ctx); err != nil {
		r.logger.Error("ghost-order purge failed", zap.Error(err))
	}
}

// recoverMissing pages through open ledger orders created inside the
// trailing window and re-inserts any absent from the book. Batches are
// bounded with a pause in between to cap load.
func (r *Reconciler) recoverMissing(ctx context.Context) error {
	since := time.Now().Add(-r.cfg.ReconcileWindow)
	offset := 0
	for {
		orders, err := r.ledger.ListOpenOrders(ctx, since, r.cfg.ReconcileBatchSize, offset)
		if err != nil {
			return err
		}
		for _, o := range orders {
			present, err := r.book.Contains(ctx, o.ID, o.StockCode, o.Side)
			if err != nil {
				return err
			}
			if present {
				continue
			}
			if err := r.book.AddOrder(ctx, o); err != nil {
				r.logger.Error("re-insert failed", zap.String("order", o.ID), zap.Error(err))
				continue
			}
			r.logger.Info("recovered missing order", zap.String("order", o.ID),
				zap.String("stock", o.StockCode))
		}
		if len(orders) < r.cfg.ReconcileBatchSize {
			return nil
		}
		offset += r.cfg.ReconcileBatchSize

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.ReconcilePause):
		}
	}
}

// purgeGhosts removes book entries whose ledger order is already terminal.
func (r *Reconciler) purgeGhosts(ctx context.Context) error {
	keys, err := r.book.IndexKeys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		ids, err := r.book.OrderIDs(ctx, key.StockCode, key.Side)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		terminal, err := r.ledger.TerminalOrderIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range terminal {
			if err := r.book.RemoveOrder(ctx, id, key.StockCode, key.Side); err != nil {
				r.logger.Error("ghost purge failed", zap.String("order", id), zap.Error(err))
				continue
			}
			// The refcount follows the entry: whoever takes an order out of
			// the book drops its subscription reference.
			if err := r.book.DecrSubscribers(ctx, key.StockCode); err != nil {
				r.logger.Warn("subscriber decrement failed", zap.String("stock", key.StockCode), zap.Error(err))
			}
			r.logger.Info("purged ghost order", zap.String("order", id),
				zap.String("stock", key.StockCode))
		}
	}
	return nil
}
