package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution is the immutable record of one fill. Created exactly once per
// allocation, never mutated.
type Execution struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"orderId"`
	AccountID  string          `json:"accountId"`
	StockCode  string          `json:"stockCode"`
	Side       OrderSide       `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity"`
	ExecutedAt time.Time       `json:"executedAt"`
}
