package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type fillClient struct {
	hub  *FillsHub
	conn *websocket.Conn
	send chan []byte
}

// FillsHub streams execution-filled events to connected clients. It also
// implements service.Notifier, so the engine can fan fills straight into
// it; delivery is best-effort like every other notification path.
type FillsHub struct {
	clients    map[*fillClient]bool
	broadcast  chan []byte
	register   chan *fillClient
	unregister chan *fillClient
	mu         sync.RWMutex
	logger     *zap.Logger
}

func NewFillsHub(logger *zap.Logger) *FillsHub {
	return &FillsHub{
		clients:    make(map[*fillClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *fillClient),
		unregister: make(chan *fillClient),
		logger:     logger,
	}
}

func (h *FillsHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client: drop the message, keep the stream live.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ExecutionFilled implements service.Notifier.
func (h *FillsHub) ExecutionFilled(_ context.Context, e *models.Execution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
		// Broadcast backlog full; fills are best-effort here.
	}
	return nil
}

func (h *FillsHub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &fillClient{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *fillClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the client going away.
func (c *fillClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
