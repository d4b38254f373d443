package service

import (
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/shopspring/decimal"
)

type PlaceOrderReq struct {
	StockCode string           `json:"stockCode" binding:"required"`
	Side      models.OrderSide `json:"side" binding:"required,oneof=BUY SELL"`
	Price     decimal.Decimal  `json:"price" binding:"required"`
	Quantity  int64            `json:"quantity" binding:"required,gt=0"`
}

type TickReq struct {
	StockCode string           `json:"stockCode" binding:"required"`
	Side      models.OrderSide `json:"side" binding:"required,oneof=BUY SELL"`
	Price     decimal.Decimal  `json:"price" binding:"required"`
	Quantity  int64            `json:"quantity" binding:"required,gt=0"`
	Timestamp time.Time        `json:"timestamp"`
}
