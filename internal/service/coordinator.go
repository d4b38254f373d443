package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"go.uber.org/zap"
)

var ErrInvalidEvent = errors.New("fill event must have positive quantity and price")

// Distributor is what the coordinator hands one event to.
type Distributor interface {
	Distribute(ctx context.Context, stockCode string, ev *models.FillEvent) ([]*models.Execution, error)
}

// Coordinator serializes distribution per stock: on each trigger it tries
// the stock's lease, pops exactly one event and hands it to the engine.
// Contention is abandoned silently; the event stays queued for the next
// trigger. A polling sweep backs up the in-process signals so queued
// events survive restarts.
type Coordinator struct {
	queue  EventQueue
	lease  StockLease
	engine Distributor
	logger *zap.Logger

	signals      chan string
	stop         chan struct{}
	wg           sync.WaitGroup
	pollInterval time.Duration
}

func NewCoordinator(queue EventQueue, lease StockLease, engine Distributor, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		queue:        queue,
		lease:        lease,
		engine:       engine,
		logger:       logger,
		signals:      make(chan string, 1024),
		stop:         make(chan struct{}),
		pollInterval: time.Second,
	}
}

func (c *Coordinator) Start(workers int) {
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	c.wg.Add(1)
	go c.pollLoop()
}

func (c *Coordinator) Stop() {
	close(c.stop)
	c.wg.Wait()
}

// Submit is the market-data boundary: enqueue one taker event for a stock
// and wake a worker.
func (c *Coordinator) Submit(ctx context.Context, stockCode string, ev *models.FillEvent) error {
	if ev.Quantity <= 0 || ev.Price.Sign() <= 0 {
		return ErrInvalidEvent
	}
	if err := c.queue.Push(ctx, stockCode, ev); err != nil {
		return err
	}
	c.Notify(stockCode)
	return nil
}

// Notify wakes a worker for the stock. Dropping on a full channel is fine;
// the polling sweep catches anything missed.
func (c *Coordinator) Notify(stockCode string) {
	select {
	case c.signals <- stockCode:
	default:
	}
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case stockCode := <-c.signals:
			c.processOne(context.Background(), stockCode)
		}
	}
}

func (c *Coordinator) pollLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			stocks, err := c.queue.StockCodes(context.Background())
			if err != nil {
				c.logger.Warn("queue sweep failed", zap.Error(err))
				continue
			}
			for _, s := range stocks {
				c.Notify(s)
			}
		}
	}
}

// processOne runs one lease-guarded distribution for the stock.
func (c *Coordinator) processOne(ctx context.Context, stockCode string) {
	token, ok, err := c.lease.Acquire(ctx, stockCode)
	if err != nil {
		c.logger.Warn("lease acquire failed", zap.String("stock", stockCode), zap.Error(err))
		return
	}
	if !ok {
		// Another worker is distributing this stock. Not an error.
		return
	}
	defer func() {
		if err := c.lease.Release(ctx, stockCode, token); err != nil {
			c.logger.Warn("lease release failed", zap.String("stock", stockCode), zap.Error(err))
		}
	}()

	ev, err := c.queue.Pop(ctx, stockCode)
	if err != nil {
		c.logger.Error("queue pop failed", zap.String("stock", stockCode), zap.Error(err))
		return
	}
	if ev == nil {
		return
	}

	execs, err := c.engine.Distribute(ctx, stockCode, ev)
	if err != nil {
		// The ledger was not touched; put the event back at the head so
		// FIFO order holds and retry on the next trigger.
		if qerr := c.queue.PushFront(ctx, stockCode, ev); qerr != nil {
			c.logger.Error("failed to re-queue event after error",
				zap.String("stock", stockCode), zap.String("event", ev.ID), zap.Error(qerr))
		}
		return
	}
	if len(execs) > 0 {
		c.logger.Info("event distributed", zap.String("stock", stockCode),
			zap.String("event", ev.ID), zap.Int("fills", len(execs)))
	}
}
