package repository

import (
	"context"

	"github.com/ripplehq/ripple-backend/internal/domain"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByUserID(ctx context.Context, userID int) (*domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
	UpdateLocation(ctx context.Context, userID int, lat, lng float64) error
	// UpdateEnrichment stores the pipeline-computed summary, embedding and
	// extracted interests without touching user-edited fields.
	UpdateEnrichment(ctx context.Context, userID int, summary string, embedding []float64, interests []string) error
	// FindNearby returns visible candidates with a location inside the
	// bounding box, excluding the requester. Precise distance filtering is
	// the caller's job.
	FindNearby(ctx context.Context, minLat, maxLat, minLng, maxLng float64, excludeUserID int) ([]*domain.Profile, error)
}
