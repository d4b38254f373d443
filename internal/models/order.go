package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the book side an aggressing event of this side matches
// against: a SELL print consumes resting BUY orders and vice versa.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderStatus string

const (
	Pending         OrderStatus = "PENDING"
	PartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	Filled          OrderStatus = "FILLED"
	Cancelled       OrderStatus = "CANCELLED"
)

// Terminal reports whether no further fills can be applied.
func (s OrderStatus) Terminal() bool {
	return s == Filled || s == Cancelled
}

type Order struct {
	ID        string          `json:"id"`
	AccountID string          `json:"accountId"`
	StockCode string          `json:"stockCode"`
	Side      OrderSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Filled    int64           `json:"filled"`
	Status    OrderStatus     `json:"status"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

func (o *Order) Remaining() int64 {
	return o.Quantity - o.Filled
}

// Active reports whether the order may still rest in the book.
func (o *Order) Active() bool {
	return o.Status == Pending || o.Status == PartiallyFilled
}
