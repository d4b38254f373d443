package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the aggregated holding of one account in one stock.
// Held is the share count reserved by pending SELL orders.
type Position struct {
	AccountID string
	StockCode string
	Quantity  int64
	Held      int64
	AvgCost   decimal.Decimal

	UpdatedAt time.Time
	DeletedAt *time.Time // soft-retired marker, set when quantity hits zero
}

// ApplyBuy folds a fill into the position: quantity grows and the average
// cost is recomputed as the quantity-weighted mean, 2 decimals, half-up.
// A soft-retired position is reactivated here.
func (p *Position) ApplyBuy(price decimal.Decimal, qty int64) {
	oldQty := decimal.NewFromInt(p.Quantity)
	fillQty := decimal.NewFromInt(qty)
	total := p.AvgCost.Mul(oldQty).Add(price.Mul(fillQty))
	p.Quantity += qty
	p.AvgCost = total.DivRound(decimal.NewFromInt(p.Quantity), 2)
	p.DeletedAt = nil
}

// ApplySell releases held shares and reduces the holding. When the holding
// reaches zero the position is soft-retired: cost resets, the row stays.
func (p *Position) ApplySell(qty int64, now time.Time) {
	p.Quantity -= qty
	p.Held -= qty
	if p.Quantity == 0 {
		p.AvgCost = decimal.Zero
		p.DeletedAt = &now
	}
}

func (p *Position) Available() int64 {
	return p.Quantity - p.Held
}
