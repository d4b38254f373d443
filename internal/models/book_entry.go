package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookEntry is the fast-store projection of an active order. It is never a
// source of truth; the ledger order is re-read before any fill.
type BookEntry struct {
	OrderID   string
	StockCode string
	Side      OrderSide
	Price     decimal.Decimal
	Remaining int64
	Total     int64
	AccountID string
	CreatedAt time.Time
}

// EntryFromOrder projects an order into its book representation.
func EntryFromOrder(o *Order) *BookEntry {
	return &BookEntry{
		OrderID:   o.ID,
		StockCode: o.StockCode,
		Side:      o.Side,
		Price:     o.Price,
		Remaining: o.Remaining(),
		Total:     o.Quantity,
		AccountID: o.AccountID,
		CreatedAt: o.CreatedAt,
	}
}
