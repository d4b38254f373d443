package handler

import (
	"net/http"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TickHandler is the market-data boundary: the feed bridge posts trade
// prints here and the coordinator takes over. Feed wire parsing stays in
// the bridge.
type TickHandler struct {
	coordinator *service.Coordinator
}

func NewTickHandler(c *service.Coordinator) *TickHandler {
	return &TickHandler{coordinator: c}
}

func (h *TickHandler) Ingest(c *gin.Context) {
	var req service.TickReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	ev := &models.FillEvent{
		ID:        uuid.NewString(),
		Side:      req.Side,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Timestamp: ts,
	}

	if err := h.coordinator.Submit(c.Request.Context(), req.StockCode, ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"eventId": ev.ID})
}
