package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"news-stream-service/model"
	"news-stream-service/registry"
	"news-stream-service/store"
)

// WSHandler upgrades subscribers onto the news stream. Registration goes
// through the registry, which enforces one live connection per user.
type WSHandler struct {
	registry    *registry.Registry
	subs        *store.SubscriptionStore
	sendTimeout time.Duration
	upgrader    websocket.Upgrader
}

func NewWSHandler(reg *registry.Registry, subs *store.SubscriptionStore, sendTimeout time.Duration) *WSHandler {
	return &WSHandler{
		registry:    reg,
		subs:        subs,
		sendTimeout: sendTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle serves GET /ws/news?user_id=...
func (h *WSHandler) Handle(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error for user=%s: %v", userID, err)
		return
	}

	conn := h.registry.Register(userID)
	go h.writePump(ws, conn)
	h.readPump(ws, conn)
}

// writePump drains the connection's outbox onto the websocket. It exits when
// the registry closes the connection or a write fails.
func (h *WSHandler) writePump(ws *websocket.Conn, conn *registry.Connection) {
	defer ws.Close()

	for {
		select {
		case msg := <-conn.Outbox():
			if err := ws.WriteJSON(msg); err != nil {
				log.Printf("Write failed for user=%s: %v", conn.UserID, err)
				h.registry.Evict(conn, "write_failed")
				return
			}
		case <-conn.Done():
			// Best-effort close notification; the peer may already be gone.
			deadline := time.Now().Add(time.Second)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "connection superseded or closed"),
				deadline)
			return
		}
	}
}

// readPump handles inbound control traffic: ping, subscribe, and anything
// else. Any read counts as liveness traffic.
func (h *WSHandler) readPump(ws *websocket.Conn, conn *registry.Connection) {
	defer func() {
		h.registry.Evict(conn, "closed")
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		conn.Touch()

		var msg model.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(conn, model.ErrorEnvelope("invalid JSON"))
			continue
		}

		switch msg.Type {
		case model.MessagePing:
			// Liveness replies bypass the filter-evaluation path entirely.
			h.reply(conn, model.PongEnvelope())
		case model.MessageSubscribe:
			h.handleSubscribe(conn, msg.Filters)
		default:
			h.reply(conn, model.ErrorEnvelope("unknown type"))
		}
	}
}

// handleSubscribe applies a dynamic filter update. A malformed payload gets
// an inline error and leaves the prior filters unchanged.
func (h *WSHandler) handleSubscribe(conn *registry.Connection, filters *model.Subscription) {
	if filters == nil {
		h.reply(conn, model.ErrorEnvelope("missing filters"))
		return
	}
	if t := filters.ImpactThreshold; t != nil && (*t < 0 || *t > 100) {
		h.reply(conn, model.ErrorEnvelope("impact_threshold must be between 0 and 100"))
		return
	}

	filters.UserID = conn.UserID
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.subs.Upsert(ctx, filters); err != nil {
		log.Printf("Failed to update filters for user=%s: %v", conn.UserID, err)
		h.reply(conn, model.ErrorEnvelope("failed to update filters"))
		return
	}

	log.Printf("User %s updated filters", conn.UserID)
}

func (h *WSHandler) reply(conn *registry.Connection, msg model.Envelope) {
	if err := conn.Deliver(msg, h.sendTimeout); err != nil {
		log.Printf("Reply failed for user=%s: %v", conn.UserID, err)
	}
}
