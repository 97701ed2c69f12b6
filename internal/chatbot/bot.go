package chatbot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

// replier generates the next chat line. The Gemini client implements it;
// when it fails the bot falls back to canned lines.
type replier interface {
	Reply(ctx context.Context, transcript string) (string, error)
}

// api is the slice of APIClient the bot loops use.
type api interface {
	IncomingWaves(ctx context.Context) ([]*waveItem, error)
	RespondWave(ctx context.Context, waveID int, accept bool) error
	Conversations(ctx context.Context) ([]*conversationItem, error)
	History(ctx context.Context, conversationID, limit int) ([]*domain.Message, error)
	SendMessage(ctx context.Context, conversationID int, content string) error
	MarkRead(ctx context.Context, conversationID int) error
}

var cannedReplies = []string{
	"Nice! How long have you been around this neighborhood?",
	"Ha, same here. What do you usually get up to on weekends?",
	"That sounds fun. I've been meaning to try that.",
	"Good question. Coffee first, answers later.",
	"I'm around the park most evenings if you ever want to say hi.",
}

// Bot runs one simulated identity: it accepts waves after a human-feeling
// delay and keeps conversations moving when the last word was not its own.
type Bot struct {
	client       api
	userID       int
	pollInterval time.Duration
	replyDelay   time.Duration
	ai           replier
	rng          *rand.Rand
	log          *zap.Logger

	pendingSince map[int]time.Time // wave id -> first seen
	repliedTo    map[int]int       // conversation id -> last message id answered
}

func NewBot(client api, userID int, pollInterval, replyDelay time.Duration, ai replier) *Bot {
	return &Bot{
		client:       client,
		userID:       userID,
		pollInterval: pollInterval,
		replyDelay:   replyDelay,
		ai:           ai,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano() + int64(userID))),
		log:          logger.L().Named("chatbot").With(zap.Int("bot_user_id", userID)),
		pendingSince: make(map[int]time.Time),
		repliedTo:    make(map[int]int),
	}
}

// Run polls until the context ends. Intervals are jittered so a fleet of
// bots does not tick in lockstep.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info("bot started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info("bot stopped")
			return
		case <-time.After(b.jittered(b.pollInterval)):
		}

		if err := b.acceptWaves(ctx); err != nil {
			b.log.Warn("wave pass failed", zap.Error(err))
		}
		if err := b.replyToConversations(ctx); err != nil {
			b.log.Warn("reply pass failed", zap.Error(err))
		}
	}
}

// acceptWaves accepts each incoming wave once it has aged past the reply
// delay. Instant acceptance reads as robotic.
func (b *Bot) acceptWaves(ctx context.Context) error {
	waves, err := b.client.IncomingWaves(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	seen := make(map[int]struct{}, len(waves))
	for _, item := range waves {
		id := item.Wave.ID
		seen[id] = struct{}{}
		first, ok := b.pendingSince[id]
		if !ok {
			b.pendingSince[id] = now
			continue
		}
		if now.Sub(first) < b.jittered(b.replyDelay) {
			continue
		}
		if err := b.client.RespondWave(ctx, id, true); err != nil {
			b.log.Warn("accept wave failed", zap.Int("wave_id", id), zap.Error(err))
			continue
		}
		delete(b.pendingSince, id)
		b.log.Info("accepted wave", zap.Int("wave_id", id), zap.Int("from", item.UserID))
	}

	// Forget waves the sender cancelled.
	for id := range b.pendingSince {
		if _, still := seen[id]; !still {
			delete(b.pendingSince, id)
		}
	}
	return nil
}

// replyToConversations answers conversations where a human spoke last and
// the bot has not yet responded to that message.
func (b *Bot) replyToConversations(ctx context.Context) error {
	convs, err := b.client.Conversations(ctx)
	if err != nil {
		return err
	}

	for _, item := range convs {
		if item.UnreadCount == 0 {
			continue
		}
		convID := item.Conversation.ID
		history, err := b.client.History(ctx, convID, 10)
		if err != nil {
			b.log.Warn("history failed", zap.Int("conversation_id", convID), zap.Error(err))
			continue
		}
		if len(history) == 0 {
			continue
		}

		latest := history[0]
		if latest.SenderID == b.userID || latest.IsDeleted() {
			continue
		}
		if b.repliedTo[convID] >= latest.ID {
			continue
		}

		if err := b.client.MarkRead(ctx, convID); err != nil {
			b.log.Warn("mark read failed", zap.Int("conversation_id", convID), zap.Error(err))
		}

		line := b.composeReply(ctx, history)
		if err := b.client.SendMessage(ctx, convID, line); err != nil {
			b.log.Warn("send reply failed", zap.Int("conversation_id", convID), zap.Error(err))
			continue
		}
		b.repliedTo[convID] = latest.ID
	}
	return nil
}

func (b *Bot) composeReply(ctx context.Context, history []*domain.Message) string {
	if b.ai != nil {
		if line, err := b.ai.Reply(ctx, transcript(history, b.userID)); err == nil && line != "" {
			return line
		}
	}
	return cannedReplies[b.rng.Intn(len(cannedReplies))]
}

// transcript renders history oldest-first for the prompt, tagging the
// bot's own lines as "you".
func transcript(history []*domain.Message, botID int) string {
	var sb strings.Builder
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.IsDeleted() || m.Type != domain.MessageTypeText {
			continue
		}
		who := "them"
		if m.SenderID == botID {
			who = "you"
		}
		fmt.Fprintf(&sb, "%s: %s\n", who, m.Content)
	}
	return sb.String()
}

// jittered returns d scaled by a random factor in [0.7, 1.3).
func (b *Bot) jittered(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.7 + 0.6*b.rng.Float64()))
}
