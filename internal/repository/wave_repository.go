package repository

import (
	"context"

	"github.com/ripplehq/ripple-backend/internal/domain"
)

type WaveRepository interface {
	// Create inserts a pending wave. Returns domain.ErrWaveAlreadyExists if
	// an active (pending or accepted) wave already exists for the ordered
	// pair; the uniqueness is enforced by the storage layer so two racing
	// sends cannot both succeed.
	Create(ctx context.Context, wave *domain.Wave) error
	GetByID(ctx context.Context, id int) (*domain.Wave, error)
	// SettleIfPending transitions the wave to a terminal status. Returns
	// false when the wave was no longer pending, so concurrent responders
	// get exactly one winner.
	SettleIfPending(ctx context.Context, id int, status string) (bool, error)
	// DeleteIfPending removes a pending wave (sender cancel). Returns false
	// when the wave was already settled or gone.
	DeleteIfPending(ctx context.Context, id int) (bool, error)
	ListIncomingPending(ctx context.Context, userID int) ([]*domain.Wave, error)
	ListOutgoingPending(ctx context.Context, userID int) ([]*domain.Wave, error)
	// VoidPendingBetween removes pending waves in both directions, used
	// when one party blocks the other.
	VoidPendingBetween(ctx context.Context, userA, userB int) error
}
