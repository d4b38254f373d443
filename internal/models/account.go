package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account carries only the cash balance; profile data lives in the member
// service.
type Account struct {
	ID        string
	Cash      decimal.Decimal
	UpdatedAt time.Time
}
