package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BookStore is the fast order-book projection: per (stock, side) a
// price-ordered index of order ids, plus a field map per order. It is
// derived from the ledger and may be stale; the reconciler heals drift.
type BookStore interface {
	AddOrder(ctx context.Context, o *models.Order) error
	RemoveOrder(ctx context.Context, orderID, stockCode string, side models.OrderSide) error
	UpdateRemaining(ctx context.Context, orderID, stockCode string, side models.OrderSide, remaining int64) error

	// FetchMatchingEntries returns up to maxCount resting entries on the
	// side opposite the taker, priced at-or-better than priceLimit from the
	// taker's perspective. Corrupt entries are purged, never surfaced.
	FetchMatchingEntries(ctx context.Context, stockCode string, takerSide models.OrderSide, priceLimit decimal.Decimal, maxCount int) ([]*models.BookEntry, error)

	// Contains reports index membership: only orders present in the side
	// index can ever match, so an entry whose hash survived but whose index
	// member is gone counts as absent.
	Contains(ctx context.Context, orderID, stockCode string, side models.OrderSide) (bool, error)
	IndexKeys(ctx context.Context) ([]BookKey, error)
	OrderIDs(ctx context.Context, stockCode string, side models.OrderSide) ([]string, error)

	IncrSubscribers(ctx context.Context, stockCode string) error
	DecrSubscribers(ctx context.Context, stockCode string) error
}

// BookKey identifies one side of one stock's book.
type BookKey struct {
	StockCode string
	Side      models.OrderSide
}

// ============================================================================
// REDIS IMPLEMENTATION
// ============================================================================

type RedisBookStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBookStore(client *redis.Client, logger *zap.Logger) *RedisBookStore {
	return &RedisBookStore{client: client, logger: logger}
}

func bookIndexKey(stockCode string, side models.OrderSide) string {
	return fmt.Sprintf("bookidx:%s:%s", stockCode, side)
}

func bookValueKey(orderID string) string {
	return fmt.Sprintf("bookval:%s", orderID)
}

func bookSubsKey(stockCode string) string {
	return fmt.Sprintf("booksub:%s", stockCode)
}

func (s *RedisBookStore) AddOrder(ctx context.Context, o *models.Order) error {
	if !o.Active() {
		return nil
	}

	fields := map[string]interface{}{
		"order_id":   o.ID,
		"stock_code": o.StockCode,
		"side":       string(o.Side),
		"price":      o.Price.String(),
		"remaining":  o.Remaining(),
		"total":      o.Quantity,
		"account_id": o.AccountID,
		"created_at": o.CreatedAt.UnixMilli(),
	}

	score, _ := o.Price.Float64()

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, bookValueKey(o.ID), fields)
	pipe.ZAdd(ctx, bookIndexKey(o.StockCode, o.Side), redis.Z{Score: score, Member: o.ID})
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline error: %v", err)
	}
	return nil
}

// RemoveOrder deletes both the index member and the field map. Idempotent.
func (s *RedisBookStore) RemoveOrder(ctx context.Context, orderID, stockCode string, side models.OrderSide) error {
	pipe := s.client.Pipeline()
	pipe.ZRem(ctx, bookIndexKey(stockCode, side), orderID)
	pipe.Del(ctx, bookValueKey(orderID))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisBookStore) UpdateRemaining(ctx context.Context, orderID, stockCode string, side models.OrderSide, remaining int64) error {
	if remaining <= 0 {
		return s.RemoveOrder(ctx, orderID, stockCode, side)
	}
	return s.client.HSet(ctx, bookValueKey(orderID), "remaining", remaining).Err()
}

func (s *RedisBookStore) FetchMatchingEntries(ctx context.Context, stockCode string, takerSide models.OrderSide, priceLimit decimal.Decimal, maxCount int) ([]*models.BookEntry, error) {
	restingSide := takerSide.Opposite()
	idxKey := bookIndexKey(stockCode, restingSide)

	var ids []string
	var err error
	if takerSide == models.Sell {
		// SELL print fills resting BUY orders priced at or above the print
		ids, err = s.client.ZRevRangeByScore(ctx, idxKey, &redis.ZRangeBy{
			Min: priceLimit.String(), Max: "+inf", Count: int64(maxCount),
		}).Result()
	} else {
		ids, err = s.client.ZRangeByScore(ctx, idxKey, &redis.ZRangeBy{
			Min: "-inf", Max: priceLimit.String(), Count: int64(maxCount),
		}).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("redis zrange error: %v", err)
	}

	entries := make([]*models.BookEntry, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, bookValueKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis hgetall error: %v", err)
		}

		entry, ok := parseBookEntry(fields)
		if !ok {
			// Stale or corrupt projection: purge it, never surface it.
			s.logger.Warn("purging corrupt book entry",
				zap.String("orderId", id), zap.String("stock", stockCode))
			if err := s.RemoveOrder(ctx, id, stockCode, restingSide); err != nil {
				s.logger.Error("failed to purge corrupt book entry", zap.String("orderId", id), zap.Error(err))
			}
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisBookStore) Contains(ctx context.Context, orderID, stockCode string, side models.OrderSide) (bool, error) {
	_, err := s.client.ZScore(ctx, bookIndexKey(stockCode, side), orderID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisBookStore) IndexKeys(ctx context.Context) ([]BookKey, error) {
	var keys []BookKey
	iter := s.client.Scan(ctx, 0, "bookidx:*", 0).Iterator()
	for iter.Next(ctx) {
		parts := strings.Split(iter.Val(), ":")
		if len(parts) != 3 {
			continue
		}
		keys = append(keys, BookKey{StockCode: parts[1], Side: models.OrderSide(parts[2])})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *RedisBookStore) OrderIDs(ctx context.Context, stockCode string, side models.OrderSide) ([]string, error) {
	return s.client.ZRange(ctx, bookIndexKey(stockCode, side), 0, -1).Result()
}

func (s *RedisBookStore) IncrSubscribers(ctx context.Context, stockCode string) error {
	return s.client.Incr(ctx, bookSubsKey(stockCode)).Err()
}

func (s *RedisBookStore) DecrSubscribers(ctx context.Context, stockCode string) error {
	return s.client.Decr(ctx, bookSubsKey(stockCode)).Err()
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

// parseBookEntry decodes a field map into a typed entry. It fails closed:
// malformed data is reported as absent so the caller purges it.
func parseBookEntry(fields map[string]string) (*models.BookEntry, bool) {
	if len(fields) == 0 {
		return nil, false
	}

	orderID := fields["order_id"]
	stockCode := fields["stock_code"]
	accountID := fields["account_id"]
	if orderID == "" || stockCode == "" || accountID == "" {
		return nil, false
	}

	side := models.OrderSide(fields["side"])
	if side != models.Buy && side != models.Sell {
		return nil, false
	}

	price, err := decimal.NewFromString(fields["price"])
	if err != nil || price.Sign() <= 0 {
		return nil, false
	}

	remaining, err := strconv.ParseInt(fields["remaining"], 10, 64)
	if err != nil {
		return nil, false
	}
	total, err := strconv.ParseInt(fields["total"], 10, 64)
	if err != nil || total <= 0 || remaining > total {
		return nil, false
	}

	createdMs, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, false
	}

	return &models.BookEntry{
		OrderID:   orderID,
		StockCode: stockCode,
		Side:      side,
		Price:     price,
		Remaining: remaining,
		Total:     total,
		AccountID: accountID,
		CreatedAt: time.UnixMilli(createdMs),
	}, true
}
