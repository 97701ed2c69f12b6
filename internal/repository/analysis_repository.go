package repository

import (
	"context"

	"github.com/ripplehq/ripple-backend/internal/domain"
)

type AnalysisRepository interface {
	Get(ctx context.Context, fromUserID, toUserID int) (*domain.ConnectionAnalysis, error)
	// Upsert replaces the directed row wholesale, hashes included.
	Upsert(ctx context.Context, analysis *domain.ConnectionAnalysis) error
}
