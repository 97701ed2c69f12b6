package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ripplehq/ripple-backend/internal/domain"
)

// Event types - client to server
const (
	EventTypeSubscribe   = "subscribe"
	EventTypeUnsubscribe = "unsubscribe"
	EventTypeTypingStart = "typing.start"
	EventTypePing        = "ping"
)

// Event types - server to client
const (
	EventTypeConnected           = "connected"
	EventTypeNewWave             = "newWave"
	EventTypeWaveResponded       = "waveResponded"
	EventTypeConversationCreated = "conversationCreated"
	EventTypeNewMessage          = "newMessage"
	EventTypeMessageDeleted      = "messageDeleted"
	EventTypeReaction            = "reaction"
	EventTypeTyping              = "typing"
	EventTypeMessagesRead        = "messagesRead"
	EventTypeAnalysisReady       = "analysisReady"
	EventTypeGroupMemberJoined   = "groupMemberJoined"
	EventTypeGroupMemberLeft     = "groupMemberLeft"
	EventTypePong                = "pong"
	EventTypeError               = "error"
)

// UserTopic is the personal routing key every connection is subscribed to.
func UserTopic(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

// ConversationTopic routes message, reaction and typing traffic.
func ConversationTopic(conversationID int) string {
	return fmt.Sprintf("conv:%d", conversationID)
}

// Event is the envelope for everything crossing the wire. ID lets a client
// deduplicate under the at-least-once contract; payloads always carry the
// server-assigned entity ids so optimistic placeholders can be reconciled.
type Event struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// NewEvent builds a server-to-client event. Marshal failures are programmer
// errors on our own payload types, so they surface as a nil event the hub
// drops with a log line.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}

// Bus is the publish side the use cases depend on. The in-process Hub
// implements it; a broker-backed fan-out can replace it without touching
// callers.
type Bus interface {
	Publish(topic string, event *Event)
}

// --- client to server payloads ---

type SubscribePayload struct {
	ConversationID int `json:"conversation_id"`
}

type TypingStartPayload struct {
	ConversationID int `json:"conversation_id"`
}

// --- server to client payloads ---

type ConnectedPayload struct {
	UserID int `json:"user_id"`
	// Resync tells the client to refetch waves/conversations/messages:
	// anything published while it was away is gone.
	Resync bool `json:"resync"`
}

type WavePayload struct {
	Wave *domain.Wave `json:"wave"`
}

type WaveRespondedPayload struct {
	WaveID         int  `json:"wave_id"`
	Accepted       bool `json:"accepted"`
	ConversationID *int `json:"conversation_id,omitempty"`
}

type ConversationPayload struct {
	Conversation *domain.Conversation `json:"conversation"`
}

type MessagePayload struct {
	Message *domain.Message `json:"message"`
}

type MessageDeletedPayload struct {
	ConversationID int `json:"conversation_id"`
	MessageID      int `json:"message_id"`
}

type ReactionPayload struct {
	ConversationID int    `json:"conversation_id"`
	MessageID      int    `json:"message_id"`
	UserID         int    `json:"user_id"`
	Emoji          string `json:"emoji"`
	Added          bool   `json:"added"`
}

type TypingPayload struct {
	ConversationID int `json:"conversation_id"`
	UserID         int `json:"user_id"`
}

type MessagesReadPayload struct {
	ConversationID int   `json:"conversation_id"`
	ReaderID       int   `json:"reader_id"`
	MessageIDs     []int `json:"message_ids"`
}

type AnalysisReadyPayload struct {
	OtherUserID int `json:"other_user_id"`
	Score       int `json:"score"`
}

type GroupMemberPayload struct {
	ConversationID int    `json:"conversation_id"`
	UserID         int    `json:"user_id"`
	Role           string `json:"role,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
