package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventQueue is the per-stock FIFO of taker events awaiting distribution.
type EventQueue interface {
	Push(ctx context.Context, stockCode string, ev *models.FillEvent) error
	// PushFront returns a popped-but-unprocessed event to the head so FIFO
	// order survives a failed distribution.
	PushFront(ctx context.Context, stockCode string, ev *models.FillEvent) error
	// Pop removes the head event. Returns nil, nil when the queue is empty.
	Pop(ctx context.Context, stockCode string) (*models.FillEvent, error)
	// StockCodes lists stocks that currently have queued events.
	StockCodes(ctx context.Context) ([]string, error)
}

// StockLease is the per-stock mutual-exclusion lease guarding distribution.
type StockLease interface {
	// Acquire is non-blocking: ok is false when another holder owns the lease.
	Acquire(ctx context.Context, stockCode string) (token string, ok bool, err error)
	// Release deletes the lease only if token still matches the holder.
	Release(ctx context.Context, stockCode, token string) error
}

// ============================================================================
// REDIS FILL-EVENT QUEUE
// ============================================================================

type RedisFillQueue struct {
	client *redis.Client
}

func NewRedisFillQueue(client *redis.Client) *RedisFillQueue {
	return &RedisFillQueue{client: client}
}

func fillQueueKey(stockCode string) string {
	return fmt.Sprintf("fillq:%s", stockCode)
}

func (q *RedisFillQueue) Push(ctx context.Context, stockCode string, ev *models.FillEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("json marshal error: %v", err)
	}
	return q.client.RPush(ctx, fillQueueKey(stockCode), data).Err()
}

func (q *RedisFillQueue) PushFront(ctx context.Context, stockCode string, ev *models.FillEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("json marshal error: %v", err)
	}
	return q.client.LPush(ctx, fillQueueKey(stockCode), data).Err()
}

func (q *RedisFillQueue) Pop(ctx context.Context, stockCode string) (*models.FillEvent, error) {
	data, err := q.client.LPop(ctx, fillQueueKey(stockCode)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis lpop error: %v", err)
	}

	var ev models.FillEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %v", err)
	}
	return &ev, nil
}

func (q *RedisFillQueue) StockCodes(ctx context.Context) ([]string, error) {
	var stocks []string
	iter := q.client.Scan(ctx, 0, "fillq:*", 0).Iterator()
	for iter.Next(ctx) {
		stocks = append(stocks, strings.TrimPrefix(iter.Val(), "fillq:"))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return stocks, nil
}

// ============================================================================
// REDIS STOCK LEASE
// ============================================================================

// releaseScript deletes the lease only when the stored token matches the
// caller's, so a holder cannot release a lease re-acquired after expiry.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisStockLease struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStockLease creates a lease manager. The TTL must exceed the
// worst-case distribution runtime for one event.
func NewRedisStockLease(client *redis.Client, ttl time.Duration) *RedisStockLease {
	return &RedisStockLease{client: client, ttl: ttl}
}

func leaseKey(stockCode string) string {
	return fmt.Sprintf("filllock:%s", stockCode)
}

func (l *RedisStockLease) Acquire(ctx context.Context, stockCode string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, leaseKey(stockCode), token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisStockLease) Release(ctx context.Context, stockCode, token string) error {
	return releaseScript.Run(ctx, l.client, []string{leaseKey(stockCode)}, token).Err()
}
