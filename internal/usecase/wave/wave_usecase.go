package wave

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/pipeline"
	"github.com/ripplehq/ripple-backend/internal/realtime"
	"github.com/ripplehq/ripple-backend/internal/repository"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

type enqueuer interface {
	Enqueue(ctx context.Context, job pipeline.Job, priority int) error
}

type WaveUseCase struct {
	waveRepo    repository.WaveRepository
	convRepo    repository.ConversationRepository
	profileRepo repository.ProfileRepository
	blockRepo   repository.BlockRepository
	bus         realtime.Bus
	jobs        enqueuer
	log         *zap.Logger
}

func NewWaveUseCase(
	waveRepo repository.WaveRepository,
	convRepo repository.ConversationRepository,
	profileRepo repository.ProfileRepository,
	blockRepo repository.BlockRepository,
	bus realtime.Bus,
	jobs enqueuer,
) *WaveUseCase {
	return &WaveUseCase{
		waveRepo:    waveRepo,
		convRepo:    convRepo,
		profileRepo: profileRepo,
		blockRepo:   blockRepo,
		bus:         bus,
		jobs:        jobs,
		log:         logger.L().Named("wave"),
	}
}

// SendRequest is the one-shot interest signal.
type SendRequest struct {
	ToUserID int     `json:"to_user_id" binding:"required"`
	Message  *string `json:"message" binding:"omitempty,max=200"`
}

// RespondRequest settles a pending wave.
type RespondRequest struct {
	Accept bool `json:"accept"`
}

// RespondResponse reports the settlement outcome. ConversationID is set
// only on accept.
type RespondResponse struct {
	Wave           *domain.Wave `json:"wave"`
	ConversationID *int         `json:"conversation_id,omitempty"`
}

// WaveWithProfile decorates a wave with the other party's public fields.
type WaveWithProfile struct {
	Wave        *domain.Wave `json:"wave"`
	UserID      int          `json:"user_id"`
	DisplayName string       `json:"display_name"`
	Interests   []string     `json:"interests"`
}

// Send creates a pending wave toward another user. At most one active wave
// may exist per ordered pair; racing duplicates lose with
// domain.ErrWaveAlreadyExists. Blocked pairs cannot wave in either
// direction.
func (uc *WaveUseCase) Send(ctx context.Context, fromUserID int, req *SendRequest) (*domain.Wave, error) {
	if fromUserID == req.ToUserID {
		return nil, fmt.Errorf("%w: cannot wave at yourself", domain.ErrInvalidInput)
	}
	if _, err := uc.profileRepo.GetByUserID(ctx, req.ToUserID); err != nil {
		return nil, err
	}

	blocked, err := uc.blockRepo.ExistsBetween(ctx, fromUserID, req.ToUserID)
	if err != nil {
		return nil, fmt.Errorf("check block: %w", err)
	}
	if blocked {
		return nil, domain.ErrBlocked
	}

	wave := &domain.Wave{
		FromUserID: fromUserID,
		ToUserID:   req.ToUserID,
		Message:    req.Message,
		Status:     domain.WaveStatusPending,
	}
	if err := uc.waveRepo.Create(ctx, wave); err != nil {
		return nil, err
	}

	uc.publish(realtime.UserTopic(req.ToUserID), realtime.EventTypeNewWave,
		realtime.WavePayload{Wave: wave})
	return wave, nil
}

// Respond settles a pending wave. Only the recipient may respond; the
// storage layer guarantees exactly one responder wins a race. Accepting
// finds or creates the DM conversation and notifies both parties.
func (uc *WaveUseCase) Respond(ctx context.Context, userID, waveID int, req *RespondRequest) (*RespondResponse, error) {
	wave, err := uc.waveRepo.GetByID(ctx, waveID)
	if err != nil {
		return nil, err
	}
	if wave.ToUserID != userID {
		return nil, domain.ErrForbidden
	}

	if wave.Status != domain.WaveStatusPending {
		return nil, domain.ErrWaveNotPending
	}

	status := domain.WaveStatusDeclined
	if req.Accept {
		status = domain.WaveStatusAccepted
	}

	// The DM is created before the wave settles: a failure between the two
	// steps leaves the wave pending, and the retry's find-or-create
	// converges on the same conversation. An accepted wave therefore
	// always has its DM.
	var conv *domain.Conversation
	var created bool
	if req.Accept {
		conv, created, err = uc.convRepo.FindOrCreateDM(ctx, wave.FromUserID, wave.ToUserID)
		if err != nil {
			return nil, fmt.Errorf("create dm: %w", err)
		}
	}

	settled, err := uc.waveRepo.SettleIfPending(ctx, waveID, status)
	if err != nil {
		return nil, err
	}
	if !settled {
		return nil, domain.ErrWaveNotPending
	}
	wave.Status = status

	resp := &RespondResponse{Wave: wave}
	if req.Accept {
		resp.ConversationID = &conv.ID

		if created {
			uc.publish(realtime.UserTopic(wave.FromUserID), realtime.EventTypeConversationCreated,
				realtime.ConversationPayload{Conversation: conv})
			uc.publish(realtime.UserTopic(wave.ToUserID), realtime.EventTypeConversationCreated,
				realtime.ConversationPayload{Conversation: conv})
		}

		// Matched pairs jump the scoring line.
		pair := pipeline.NewScorePairJob(wave.FromUserID, wave.ToUserID)
		if err := uc.jobs.Enqueue(ctx, pair, 0); err != nil {
			uc.log.Warn("enqueue pair scoring failed", zap.String("key", pair.Key()), zap.Error(err))
		}
	}

	// Acceptance is news for both sides; a decline only for the sender.
	payload := realtime.WaveRespondedPayload{WaveID: wave.ID, Accepted: req.Accept, ConversationID: resp.ConversationID}
	uc.publish(realtime.UserTopic(wave.FromUserID), realtime.EventTypeWaveResponded, payload)
	if req.Accept {
		uc.publish(realtime.UserTopic(wave.ToUserID), realtime.EventTypeWaveResponded, payload)
	}
	return resp, nil
}

// Cancel withdraws the sender's own pending wave.
func (uc *WaveUseCase) Cancel(ctx context.Context, userID, waveID int) error {
	wave, err := uc.waveRepo.GetByID(ctx, waveID)
	if err != nil {
		return err
	}
	if wave.FromUserID != userID {
		return domain.ErrForbidden
	}
	removed, err := uc.waveRepo.DeleteIfPending(ctx, waveID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrWaveNotPending
	}
	return nil
}

// ListIncoming returns pending waves aimed at the user, with sender info.
func (uc *WaveUseCase) ListIncoming(ctx context.Context, userID int) ([]*WaveWithProfile, error) {
	waves, err := uc.waveRepo.ListIncomingPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	return uc.decorate(ctx, waves, func(w *domain.Wave) int { return w.FromUserID })
}

// ListOutgoing returns the user's own pending waves, with recipient info.
func (uc *WaveUseCase) ListOutgoing(ctx context.Context, userID int) ([]*WaveWithProfile, error) {
	waves, err := uc.waveRepo.ListOutgoingPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	return uc.decorate(ctx, waves, func(w *domain.Wave) int { return w.ToUserID })
}

func (uc *WaveUseCase) decorate(ctx context.Context, waves []*domain.Wave, otherID func(*domain.Wave) int) ([]*WaveWithProfile, error) {
	out := make([]*WaveWithProfile, 0, len(waves))
	for _, w := range waves {
		item := &WaveWithProfile{Wave: w, UserID: otherID(w)}
		profile, err := uc.profileRepo.GetByUserID(ctx, item.UserID)
		if err == nil {
			item.DisplayName = profile.DisplayName
			item.Interests = profile.Interests
		}
		out = append(out, item)
	}
	return out, nil
}

func (uc *WaveUseCase) publish(topic, eventType string, payload any) {
	event, err := realtime.NewEvent(eventType, payload)
	if err != nil {
		uc.log.Error("build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	uc.bus.Publish(topic, event)
}
