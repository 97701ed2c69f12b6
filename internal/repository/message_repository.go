package repository

import (
	"context"

	"github.com/ripplehq/ripple-backend/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id int) (*domain.Message, error)
	// List returns messages newest-first, optionally scoped to a topic and
	// paginated by a before-id cursor. Soft-deleted rows are included as
	// tombstones for ordering.
	List(ctx context.Context, conversationID int, topicID, beforeID *int, limit int) ([]*domain.Message, error)
	SoftDelete(ctx context.Context, id int) error
	// MarkRead stamps read_at on every unread message in the conversation
	// not sent by readerID, returning the affected ids. Idempotent.
	MarkRead(ctx context.Context, conversationID, readerID int) ([]int, error)
	Search(ctx context.Context, conversationID int, query string, limit int) ([]*domain.Message, error)
	CountUnread(ctx context.Context, conversationID, readerID int) (int, error)

	// ToggleReaction adds the (message, user, emoji) reaction or removes it
	// if present. Returns true when the reaction was added.
	ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (bool, error)
	ListReactions(ctx context.Context, messageID int) ([]*domain.Reaction, error)
}
