package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type HoldStatus string

const (
	HoldActive   HoldStatus = "ACTIVE"
	HoldReleased HoldStatus = "RELEASED"
)

// Hold reserves cash for an outstanding BUY order, one-to-one with the
// order. The amount only ever decreases; it reaches zero exactly when the
// hold is released.
type Hold struct {
	OrderID   string
	AccountID string
	Amount    decimal.Decimal
	Status    HoldStatus
	UpdatedAt time.Time
}
