package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FillEvent is a real market trade print to be matched against resting
// orders. Side is the aggressing side: a SELL event fills resting BUYs.
type FillEvent struct {
	ID        string          `json:"id"`
	Side      OrderSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

// Residual derives the re-queued remainder of a partially absorbed event:
// fresh id, reduced quantity, price/side/timestamp preserved.
func (e *FillEvent) Residual(qty int64) *FillEvent {
	return &FillEvent{
		ID:        uuid.NewString(),
		Side:      e.Side,
		Price:     e.Price,
		Quantity:  qty,
		Timestamp: e.Timestamp,
	}
}
