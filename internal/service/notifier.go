package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/redis/go-redis/v9"
)

// Notifier delivers execution-filled events to downstream consumers
// (notification, mission bookkeeping). Delivery is best-effort: failures
// are logged by the caller and never abort a distribution.
type Notifier interface {
	ExecutionFilled(ctx context.Context, e *models.Execution) error
}

// FillChannel is the Redis pub/sub channel executions are published on.
const FillChannel = "executions.filled"

type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) ExecutionFilled(ctx context.Context, e *models.Execution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("json marshal error: %v", err)
	}
	return n.client.Publish(ctx, FillChannel, data).Err()
}

// MultiNotifier fans one event out to several consumers. Each consumer is
// attempted regardless of earlier failures; the first error is returned.
type MultiNotifier []Notifier

func (m MultiNotifier) ExecutionFilled(ctx context.Context, e *models.Execution) error {
	var first error
	for _, n := range m {
		if err := n.ExecutionFilled(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, e *models.Execution) error

func (f NotifierFunc) ExecutionFilled(ctx context.Context, e *models.Execution) error {
	return f(ctx, e)
}
