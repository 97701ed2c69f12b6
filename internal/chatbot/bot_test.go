package chatbot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplehq/ripple-backend/internal/domain"
)

type fakeAPI struct {
	waves    []*waveItem
	convs    []*conversationItem
	history  map[int][]*domain.Message
	accepted []int
	sent     map[int][]string
	read     []int
}

func (f *fakeAPI) IncomingWaves(context.Context) ([]*waveItem, error) { return f.waves, nil }

func (f *fakeAPI) RespondWave(_ context.Context, waveID int, accept bool) error {
	if accept {
		f.accepted = append(f.accepted, waveID)
	}
	var remaining []*waveItem
	for _, w := range f.waves {
		if w.Wave.ID != waveID {
			remaining = append(remaining, w)
		}
	}
	f.waves = remaining
	return nil
}

func (f *fakeAPI) Conversations(context.Context) ([]*conversationItem, error) { return f.convs, nil }

func (f *fakeAPI) History(_ context.Context, conversationID, _ int) ([]*domain.Message, error) {
	return f.history[conversationID], nil
}

func (f *fakeAPI) SendMessage(_ context.Context, conversationID int, content string) error {
	if f.sent == nil {
		f.sent = map[int][]string{}
	}
	f.sent[conversationID] = append(f.sent[conversationID], content)
	return nil
}

func (f *fakeAPI) MarkRead(_ context.Context, conversationID int) error {
	f.read = append(f.read, conversationID)
	return nil
}

type fakeReplier struct {
	line string
	err  error
}

func (r *fakeReplier) Reply(context.Context, string) (string, error) {
	return r.line, r.err
}

func newTestBot(apiClient api, ai replier) *Bot {
	return NewBot(apiClient, 42, time.Second, 50*time.Millisecond, ai)
}

func TestAcceptWavesWaitsForDelay(t *testing.T) {
	apiClient := &fakeAPI{waves: []*waveItem{
		{Wave: &domain.Wave{ID: 7, FromUserID: 1, ToUserID: 42}, UserID: 1},
	}}
	bot := newTestBot(apiClient, nil)

	// First pass only records the wave.
	require.NoError(t, bot.acceptWaves(context.Background()))
	assert.Empty(t, apiClient.accepted)

	// After the delay has aged, the wave is accepted.
	bot.pendingSince[7] = time.Now().Add(-time.Minute)
	require.NoError(t, bot.acceptWaves(context.Background()))
	assert.Equal(t, []int{7}, apiClient.accepted)
}

func TestAcceptWavesForgetsCancelled(t *testing.T) {
	apiClient := &fakeAPI{waves: []*waveItem{
		{Wave: &domain.Wave{ID: 7}, UserID: 1},
	}}
	bot := newTestBot(apiClient, nil)

	require.NoError(t, bot.acceptWaves(context.Background()))
	require.Contains(t, bot.pendingSince, 7)

	apiClient.waves = nil
	require.NoError(t, bot.acceptWaves(context.Background()))
	assert.NotContains(t, bot.pendingSince, 7)
}

func TestReplyOnlyWhenHumanSpokeLast(t *testing.T) {
	apiClient := &fakeAPI{
		convs: []*conversationItem{
			{Conversation: &domain.Conversation{ID: 10}, UnreadCount: 1},
			{Conversation: &domain.Conversation{ID: 11}, UnreadCount: 0},
		},
		history: map[int][]*domain.Message{
			10: {{ID: 3, ConversationID: 10, SenderID: 1, Type: domain.MessageTypeText, Content: "hey there"}},
		},
	}
	bot := newTestBot(apiClient, &fakeReplier{line: "hey! how's it going?"})

	require.NoError(t, bot.replyToConversations(context.Background()))
	require.Len(t, apiClient.sent[10], 1)
	assert.Equal(t, "hey! how's it going?", apiClient.sent[10][0])
	assert.Equal(t, []int{10}, apiClient.read)
	assert.Empty(t, apiClient.sent[11])

	// Same latest message: no double reply.
	require.NoError(t, bot.replyToConversations(context.Background()))
	assert.Len(t, apiClient.sent[10], 1)
}

func TestReplyFallsBackToCannedLine(t *testing.T) {
	apiClient := &fakeAPI{
		convs: []*conversationItem{
			{Conversation: &domain.Conversation{ID: 10}, UnreadCount: 2},
		},
		history: map[int][]*domain.Message{
			10: {{ID: 5, ConversationID: 10, SenderID: 1, Type: domain.MessageTypeText, Content: "you there?"}},
		},
	}
	bot := newTestBot(apiClient, &fakeReplier{err: context.DeadlineExceeded})

	require.NoError(t, bot.replyToConversations(context.Background()))
	require.Len(t, apiClient.sent[10], 1)
	assert.Contains(t, cannedReplies, apiClient.sent[10][0])
}

func TestTranscriptRendersOldestFirstTaggingBot(t *testing.T) {
	history := []*domain.Message{
		{ID: 2, SenderID: 42, Type: domain.MessageTypeText, Content: "hi back"},
		{ID: 1, SenderID: 1, Type: domain.MessageTypeText, Content: "hi"},
	}
	out := transcript(history, 42)
	assert.Equal(t, "them: hi\nyou: hi back\n", out)
}
