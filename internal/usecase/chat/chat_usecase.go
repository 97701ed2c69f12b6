package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/realtime"
	"github.com/ripplehq/ripple-backend/internal/repository"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
	MaxContentLen       = 4000
)

type ChatUseCase struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	bus      realtime.Bus
	log      *zap.Logger
}

func NewChatUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	bus realtime.Bus,
) *ChatUseCase {
	return &ChatUseCase{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		bus:      bus,
		log:      logger.L().Named("chat"),
	}
}

// SendMessageRequest is a new message in a conversation.
type SendMessageRequest struct {
	Type      string          `json:"type" binding:"omitempty,oneof=text image location"`
	Content   string          `json:"content" binding:"required"`
	TopicID   *int            `json:"topic_id"`
	ReplyToID *int            `json:"reply_to_id"`
	Metadata  json.RawMessage `json:"metadata"`
}

// HistoryRequest pages backwards through a conversation.
type HistoryRequest struct {
	TopicID  *int `form:"topic_id"`
	BeforeID *int `form:"before_id"`
	Limit    int  `form:"limit"`
}

// ConversationSummary is one row of the user's conversation list.
type ConversationSummary struct {
	Conversation *domain.Conversation `json:"conversation"`
	UnreadCount  int                  `json:"unread_count"`
}

// ReactRequest toggles one emoji reaction.
type ReactRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}

// ReactResponse reports the toggle direction.
type ReactResponse struct {
	Added bool `json:"added"`
}

// Send posts a message. The sender must be a participant; a reply target
// or topic must belong to the same conversation.
func (uc *ChatUseCase) Send(ctx context.Context, userID, conversationID int, req *SendMessageRequest) (*domain.Message, error) {
	if _, err := uc.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > MaxContentLen {
		return nil, fmt.Errorf("%w: content length", domain.ErrInvalidInput)
	}

	msgType := req.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	if req.TopicID != nil {
		topic, err := uc.convRepo.GetTopic(ctx, *req.TopicID)
		if err != nil {
			return nil, err
		}
		if topic.ConversationID != conversationID {
			return nil, fmt.Errorf("%w: topic belongs to another conversation", domain.ErrInvalidInput)
		}
		if topic.Closed {
			return nil, fmt.Errorf("%w: topic is closed", domain.ErrInvalidInput)
		}
	}
	if req.ReplyToID != nil {
		parent, err := uc.msgRepo.GetByID(ctx, *req.ReplyToID)
		if err != nil {
			return nil, err
		}
		if parent.ConversationID != conversationID {
			return nil, fmt.Errorf("%w: reply target in another conversation", domain.ErrInvalidInput)
		}
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		TopicID:        req.TopicID,
		SenderID:       userID,
		Type:           msgType,
		Content:        content,
		Metadata:       req.Metadata,
		ReplyToID:      req.ReplyToID,
	}
	if err := uc.msgRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := uc.convRepo.TouchActivity(ctx, conversationID); err != nil {
		uc.log.Warn("touch activity failed", zap.Int("conversation_id", conversationID), zap.Error(err))
	}

	uc.publish(realtime.ConversationTopic(conversationID), realtime.EventTypeNewMessage,
		realtime.MessagePayload{Message: msg})
	return msg, nil
}

// History lists messages newest-first with a before-id cursor. Soft-deleted
// messages come back redacted, keeping their slot for ordering.
func (uc *ChatUseCase) History(ctx context.Context, userID, conversationID int, req *HistoryRequest) ([]*domain.Message, error) {
	if _, err := uc.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	messages, err := uc.msgRepo.List(ctx, conversationID, req.TopicID, req.BeforeID, limit)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		m.Redact()
	}
	return messages, nil
}

// MarkRead stamps every unread message not sent by the reader and tells the
// conversation about it. Re-reading an already-read conversation is a no-op
// and publishes nothing.
func (uc *ChatUseCase) MarkRead(ctx context.Context, userID, conversationID int) ([]int, error) {
	if _, err := uc.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	ids, err := uc.msgRepo.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		uc.publish(realtime.ConversationTopic(conversationID), realtime.EventTypeMessagesRead,
			realtime.MessagesReadPayload{ConversationID: conversationID, ReaderID: userID, MessageIDs: ids})
	}
	return ids, nil
}

// Delete soft-deletes the sender's own message.
func (uc *ChatUseCase) Delete(ctx context.Context, userID, conversationID, messageID int) error {
	if _, err := uc.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	msg, err := uc.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conversationID {
		return domain.ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return domain.ErrForbidden
	}
	if err := uc.msgRepo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	uc.publish(realtime.ConversationTopic(conversationID), realtime.EventTypeMessageDeleted,
		realtime.MessageDeletedPayload{ConversationID: conversationID, MessageID: messageID})
	return nil
}

// React toggles an emoji reaction on a message.
func (uc *ChatUseCase) React(ctx context.Context, userID, conversationID, messageID int, req *ReactRequest) (*ReactResponse, error) {
	if _, err := uc.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msg, err := uc.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ConversationID != conversationID {
		return nil, domain.ErrMessageNotFound
	}
	if msg.IsDeleted() {
		return nil, fmt.Errorf("%w: message deleted", domain.ErrInvalidInput)
	}

	added, err := uc.msgRepo.ToggleReaction(ctx, messageID, userID, req.Emoji)
	if err != nil {
		return nil, err
	}

	uc.publish(realtime.ConversationTopic(conversationID), realtime.EventTypeReaction,
		realtime.ReactionPayload{
			ConversationID: conversationID, MessageID: messageID,
			UserID: userID, Emoji: req.Emoji, Added: added,
		})
	return &ReactResponse{Added: added}, nil
}

// Search finds messages by content within one conversation.
func (uc *ChatUseCase) Search(ctx context.Context, userID, conversationID int, query string, limit int) ([]*domain.Message, error) {
	if _, err := uc.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return uc.msgRepo.Search(ctx, conversationID, query, limit)
}

// ListConversations returns the user's conversations ordered by last
// activity, each with its unread count.
func (uc *ChatUseCase) ListConversations(ctx context.Context, userID int) ([]*ConversationSummary, error) {
	convs, err := uc.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		unread, err := uc.msgRepo.CountUnread(ctx, conv.ID, userID)
		if err != nil {
			uc.log.Warn("count unread failed", zap.Int("conversation_id", conv.ID), zap.Error(err))
		}
		out = append(out, &ConversationSummary{Conversation: conv, UnreadCount: unread})
	}
	return out, nil
}

// GetConversation returns one conversation the user belongs to, with its
// participants and topics.
func (uc *ChatUseCase) GetConversation(ctx context.Context, userID, conversationID int) (*domain.Conversation, []*domain.ConversationParticipant, []*domain.Topic, error) {
	if _, err := uc.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, nil, nil, err
	}
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, nil, nil, err
	}
	participants, err := uc.convRepo.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, nil, nil, err
	}
	var topics []*domain.Topic
	if conv.IsGroup() {
		topics, err = uc.convRepo.ListTopics(ctx, conversationID)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return conv, participants, topics, nil
}

func (uc *ChatUseCase) requireParticipant(ctx context.Context, conversationID, userID int) (*domain.ConversationParticipant, error) {
	participant, err := uc.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, domain.ErrNotParticipant
	}
	return participant, nil
}

func (uc *ChatUseCase) publish(topic, eventType string, payload any) {
	event, err := realtime.NewEvent(eventType, payload)
	if err != nil {
		uc.log.Error("build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	uc.bus.Publish(topic, event)
}
