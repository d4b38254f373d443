package service

import (
	"testing"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() map[string]string {
	return map[string]string{
		"order_id":   "ord-1",
		"stock_code": "005930",
		"side":       "BUY",
		"price":      "100.50",
		"remaining":  "5",
		"total":      "10",
		"account_id": "acct-1",
		"created_at": "1700000000000",
	}
}

func TestParseBookEntry(t *testing.T) {
	entry, ok := parseBookEntry(validFields())

	require.True(t, ok)
	assert.Equal(t, "ord-1", entry.OrderID)
	assert.Equal(t, models.Buy, entry.Side)
	assert.True(t, entry.Price.Equal(dec("100.50")))
	assert.EqualValues(t, 5, entry.Remaining)
	assert.EqualValues(t, 10, entry.Total)
	assert.Equal(t, time.UnixMilli(1700000000000), entry.CreatedAt)
}

func TestParseBookEntryFailsClosed(t *testing.T) {
	cases := map[string]func(map[string]string){
		"empty map":            func(f map[string]string) { clear(f) },
		"missing order id":     func(f map[string]string) { delete(f, "order_id") },
		"missing account":      func(f map[string]string) { f["account_id"] = "" },
		"bad side":             func(f map[string]string) { f["side"] = "HOLD" },
		"bad price":            func(f map[string]string) { f["price"] = "not-a-number" },
		"zero price":           func(f map[string]string) { f["price"] = "0" },
		"bad remaining":        func(f map[string]string) { f["remaining"] = "x" },
		"remaining over total": func(f map[string]string) { f["remaining"] = "11" },
		"zero total":           func(f map[string]string) { f["total"] = "0" },
		"bad timestamp":        func(f map[string]string) { f["created_at"] = "yesterday" },
	}

	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			fields := validFields()
			corrupt(fields)
			entry, ok := parseBookEntry(fields)
			assert.False(t, ok)
			assert.Nil(t, entry)
		})
	}
}

func TestSortByPriorityForSellTaker(t *testing.T) {
	t0 := time.Now().Add(-2 * time.Minute)
	t1 := time.Now()
	entries := []*models.BookEntry{
		{OrderID: "low", Price: dec("99"), CreatedAt: t0},
		{OrderID: "high-late", Price: dec("100"), CreatedAt: t1},
		{OrderID: "high-early", Price: dec("100"), CreatedAt: t0},
	}

	sortByPriority(entries, models.Sell)

	assert.Equal(t, "high-early", entries[0].OrderID)
	assert.Equal(t, "high-late", entries[1].OrderID)
	assert.Equal(t, "low", entries[2].OrderID)
}

func TestSortByPriorityForBuyTaker(t *testing.T) {
	t0 := time.Now().Add(-2 * time.Minute)
	t1 := time.Now()
	entries := []*models.BookEntry{
		{OrderID: "high", Price: dec("101"), CreatedAt: t0},
		{OrderID: "low-late", Price: dec("100"), CreatedAt: t1},
		{OrderID: "low-early", Price: dec("100"), CreatedAt: t0},
	}

	sortByPriority(entries, models.Buy)

	assert.Equal(t, "low-early", entries[0].OrderID)
	assert.Equal(t, "low-late", entries[1].OrderID)
	assert.Equal(t, "high", entries[2].OrderID)
}

func TestAffordableQty(t *testing.T) {
	assert.EqualValues(t, 7, affordableQty(dec("700"), dec("100")))
	assert.EqualValues(t, 6, affordableQty(dec("699.99"), dec("100")))
	assert.EqualValues(t, 0, affordableQty(dec("0"), dec("100")))
	assert.EqualValues(t, 0, affordableQty(dec("-5"), dec("100")))
	assert.EqualValues(t, 233, affordableQty(dec("700"), dec("3")))
}
