package realtime

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ripplehq/ripple-backend/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultWriteWait    = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultMaxMessage   = 4096
	defaultSendBuf      = 256
)

// Settings bounds one connection. Zero values fall back to defaults.
type Settings struct {
	SendBuffer      int
	MaxMessageBytes int64
	PingInterval    time.Duration
	WriteTimeout    time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.SendBuffer <= 0 {
		s.SendBuffer = defaultSendBuf
	}
	if s.MaxMessageBytes <= 0 {
		s.MaxMessageBytes = defaultMaxMessage
	}
	if s.PingInterval <= 0 {
		s.PingInterval = defaultPingInterval
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = defaultWriteWait
	}
	return s
}

// Client is one live WebSocket connection bound to an authenticated user.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   int
	settings Settings

	// topics is owned by the hub's Run goroutine.
	topics map[string]struct{}

	send chan []byte

	// authorize reports whether this user may subscribe to a conversation.
	authorize func(conversationID int) bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int, authorize func(conversationID int) bool, settings Settings) *Client {
	settings = settings.withDefaults()
	return &Client{
		hub:       hub,
		conn:      conn,
		userID:    userID,
		settings:  settings,
		topics:    make(map[string]struct{}),
		send:      make(chan []byte, settings.SendBuffer),
		authorize: authorize,
	}
}

// ReadPump reads client events until the connection dies, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	// A connection silent for two ping cycles is considered dead.
	pongWait := 2 * c.settings.PingInterval
	c.conn.SetReadLimit(c.settings.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var event Event
		if err := c.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L().Debug("realtime: read error",
					zap.Int("user_id", c.userID), zap.Error(err))
			}
			return
		}
		c.handleEvent(&event)
	}
}

// WritePump drains the send buffer to the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(c.settings.WriteTimeout))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeSubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("invalid_input", "invalid subscribe payload")
			return
		}
		if c.authorize != nil && !c.authorize(p.ConversationID) {
			c.sendError("forbidden", "not a participant")
			return
		}
		c.hub.Subscribe(c, ConversationTopic(p.ConversationID))

	case EventTypeUnsubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("invalid_input", "invalid unsubscribe payload")
			return
		}
		c.hub.Unsubscribe(c, ConversationTopic(p.ConversationID))

	case EventTypeTypingStart:
		var p TypingStartPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("invalid_input", "invalid typing payload")
			return
		}
		if c.authorize != nil && !c.authorize(p.ConversationID) {
			return
		}
		// Ephemeral: fan out to current subscribers only, never persisted.
		evt, err := NewEvent(EventTypeTyping, TypingPayload{
			ConversationID: p.ConversationID,
			UserID:         c.userID,
		})
		if err != nil {
			return
		}
		c.hub.Publish(ConversationTopic(p.ConversationID), evt)

	case EventTypePing:
		data, _ := json.Marshal(Event{Type: EventTypePong})
		select {
		case c.send <- data:
		default:
		}

	default:
		c.sendError("invalid_input", "unknown event type: "+event.Type)
	}
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
