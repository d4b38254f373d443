package handler

import (
	"net/http"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Internal ingest endpoint for the market-data bridge.
	r.POST("/internal/ticks", h.Ticks.Ingest)

	r.GET("/ws/fills", h.Fills.ServeWS)

	orders := r.Group("/orders")
	orders.Use(middleware.RequireAuth())
	{
		orders.POST("", h.Orders.Place)
		orders.GET("", h.Orders.List)
		orders.DELETE("/:id", h.Orders.Cancel)
	}

	r.GET("/executions", middleware.RequireAuth(), h.Orders.Executions)
}
