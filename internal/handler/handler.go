package handler

import (
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/service"
)

type Handler struct {
	Orders *OrderHandler
	Ticks  *TickHandler
	Fills  *FillsHub
}

func NewHandler(orderSvc *service.OrderService, coordinator *service.Coordinator, fills *FillsHub) *Handler {
	go fills.Run()

	return &Handler{
		Orders: NewOrderHandler(orderSvc),
		Ticks:  NewTickHandler(coordinator),
		Fills:  fills,
	}
}
