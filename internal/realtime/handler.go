package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ripplehq/ripple-backend/internal/config"
	"github.com/ripplehq/ripple-backend/internal/repository"
	"github.com/ripplehq/ripple-backend/pkg/logger"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth already happened in middleware; cross-origin browsers are
	// expected clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated HTTP requests into hub connections.
type Handler struct {
	hub      *Hub
	convRepo repository.ConversationRepository
	settings Settings
}

func NewHandler(hub *Hub, convRepo repository.ConversationRepository, cfg config.RealtimeConfig) *Handler {
	return &Handler{
		hub:      hub,
		convRepo: convRepo,
		settings: Settings{
			SendBuffer:      cfg.SendBufferSize,
			MaxMessageBytes: cfg.MaxMessageBytes,
			PingInterval:    cfg.PingInterval,
			WriteTimeout:    cfg.WriteTimeout,
		},
	}
}

// Serve handles GET /ws. On connect the client is auto-subscribed to its
// personal topic and every conversation it participates in, then told to
// reconcile: events published while it was away are gone for good.
func (h *Handler) Serve(c *gin.Context) {
	userID := c.GetInt("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L().Warn("realtime: upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, userID, func(conversationID int) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, err := h.convRepo.GetParticipant(ctx, conversationID, userID)
		return err == nil
	}, h.settings)

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	h.hub.Subscribe(client, UserTopic(userID))

	ids, err := h.convRepo.IDsByUser(c.Request.Context(), userID)
	if err != nil {
		logger.L().Error("realtime: list conversations for subscribe",
			zap.Int("user_id", userID), zap.Error(err))
	}
	for _, id := range ids {
		h.hub.Subscribe(client, ConversationTopic(id))
	}

	if evt, err := NewEvent(EventTypeConnected, ConnectedPayload{UserID: userID, Resync: true}); err == nil {
		if data, err := json.Marshal(evt); err == nil {
			select {
			case client.send <- data:
			default:
			}
		}
	}

	go client.WritePump()
	go client.ReadPump()
}
