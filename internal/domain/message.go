package domain

import (
	"encoding/json"
	"time"
)

const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeLocation = "location"
)

// Message is immutable once created except for the read/deleted timestamps
// and reactions. A soft-deleted message keeps its row for ordering; content
// is blanked before leaving the server.
type Message struct {
	ID             int             `json:"id" db:"id"`
	ConversationID int             `json:"conversation_id" db:"conversation_id"`
	TopicID        *int            `json:"topic_id,omitempty" db:"topic_id"`
	SenderID       int             `json:"sender_id" db:"sender_id"`
	Type           string          `json:"type" db:"type"`
	Content        string          `json:"content" db:"content"`
	Metadata       json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	ReplyToID      *int            `json:"reply_to_id,omitempty" db:"reply_to_id"`
	ReadAt         *time.Time      `json:"read_at,omitempty" db:"read_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Redact blanks content and metadata on a soft-deleted message before it is
// handed to any client other than via ordering.
func (m *Message) Redact() {
	if m.IsDeleted() {
		m.Content = ""
		m.Metadata = nil
	}
}

// Reaction toggle semantics: at most one row per (message, user, emoji);
// repeating the action removes it.
type Reaction struct {
	MessageID int       `json:"message_id" db:"message_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Emoji     string    `json:"emoji" db:"emoji"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
