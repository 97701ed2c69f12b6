package repository

import (
	"context"

	"github.com/ripplehq/ripple-backend/internal/domain"
)

type ConversationRepository interface {
	// FindOrCreateDM returns the DM conversation for the unordered pair,
	// creating it (with both participant rows) if absent. Idempotent under
	// concurrent calls: racing accepts reuse the same row.
	FindOrCreateDM(ctx context.Context, userA, userB int) (*domain.Conversation, bool, error)
	// CreateGroup creates the conversation, the owner participant, any
	// initial members, and a default pinned topic, atomically.
	CreateGroup(ctx context.Context, conv *domain.Conversation, ownerID int, memberIDs []int, defaultTopic string) error
	GetByID(ctx context.Context, id int) (*domain.Conversation, error)
	GetByInviteCode(ctx context.Context, code string) (*domain.Conversation, error)
	Update(ctx context.Context, conv *domain.Conversation) error
	SetInviteCode(ctx context.Context, id int, code string) error
	TouchActivity(ctx context.Context, id int) error
	ListByUser(ctx context.Context, userID int) ([]*domain.Conversation, error)
	IDsByUser(ctx context.Context, userID int) ([]int, error)
	// ListDiscoverable returns group conversations that opted into nearby
	// listing; radius filtering happens in the use case.
	ListDiscoverable(ctx context.Context) ([]*domain.Conversation, error)

	GetParticipant(ctx context.Context, conversationID, userID int) (*domain.ConversationParticipant, error)
	ListParticipants(ctx context.Context, conversationID int) ([]*domain.ConversationParticipant, error)
	// AddParticipant joins a user under a capacity check done in the same
	// transaction. Returns domain.ErrGroupFull or domain.ErrAlreadyMember.
	AddParticipant(ctx context.Context, conversationID, userID int, role string) error
	RemoveParticipant(ctx context.Context, conversationID, userID int) error
	SetRole(ctx context.Context, conversationID, userID int, role string) error
	// TransferOwnership promotes the new owner and demotes the old one to
	// admin in a single transaction; no intermediate state with zero or two
	// owners is observable.
	TransferOwnership(ctx context.Context, conversationID, fromUserID, toUserID int) error

	CreateTopic(ctx context.Context, topic *domain.Topic) error
	GetTopic(ctx context.Context, id int) (*domain.Topic, error)
	ListTopics(ctx context.Context, conversationID int) ([]*domain.Topic, error)
}
