package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/middleware"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct{ svc *service.OrderService }

func NewOrderHandler(s *service.OrderService) *OrderHandler { return &OrderHandler{svc: s} }

func (h *OrderHandler) Place(c *gin.Context) {
	accountID, err := middleware.CurrentAccount(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req service.PlaceOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.svc.PlaceLimitOrder(c.Request.Context(), accountID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *OrderHandler) List(c *gin.Context) {
	accountID, err := middleware.CurrentAccount(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	status := c.Query("status")

	orders, err := h.svc.ListOrders(c.Request.Context(), accountID, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) Executions(c *gin.Context) {
	accountID, err := middleware.CurrentAccount(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	execs, err := h.svc.ListExecutions(c.Request.Context(), accountID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, execs)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	accountID, err := middleware.CurrentAccount(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.svc.CancelOrder(c.Request.Context(), accountID, id); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrOrderNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
