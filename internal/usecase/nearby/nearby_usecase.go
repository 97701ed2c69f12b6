package nearby

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/geo"
	"github.com/ripplehq/ripple-backend/internal/pipeline"
	"github.com/ripplehq/ripple-backend/internal/ranking"
	"github.com/ripplehq/ripple-backend/internal/repository"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

const (
	DefaultRadiusM = 500.0
	MaxRadiusM     = 5000.0
	DefaultLimit   = 20
	MaxLimit       = 50
)

// enqueuer is the slice of the pipeline the use case needs.
type enqueuer interface {
	Enqueue(ctx context.Context, job pipeline.Job, priority int) error
}

type NearbyUseCase struct {
	profileRepo  repository.ProfileRepository
	blockRepo    repository.BlockRepository
	analysisRepo repository.AnalysisRepository
	jobs         enqueuer
	log          *zap.Logger
}

func NewNearbyUseCase(
	profileRepo repository.ProfileRepository,
	blockRepo repository.BlockRepository,
	analysisRepo repository.AnalysisRepository,
	jobs enqueuer,
) *NearbyUseCase {
	return &NearbyUseCase{
		profileRepo:  profileRepo,
		blockRepo:    blockRepo,
		analysisRepo: analysisRepo,
		jobs:         jobs,
		log:          logger.L().Named("nearby"),
	}
}

// NearbyRequest carries the requester's current position and search bounds.
type NearbyRequest struct {
	Lat     float64 `form:"lat" binding:"required,latitude"`
	Lng     float64 `form:"lng" binding:"required,longitude"`
	RadiusM float64 `form:"radius_m"`
	Limit   int     `form:"limit"`
}

// NearbyPerson is one ranked candidate. Location is exposed only as the
// privacy cell and a distance rounded to 100m, never raw coordinates.
type NearbyPerson struct {
	UserID      int      `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Interests   []string `json:"interests"`
	Cell        geo.Cell `json:"cell"`
	DistanceM   float64  `json:"distance_m"`
	RankScore   float64  `json:"rank_score"`
	Score       *int     `json:"score,omitempty"`
	Snippet     *string  `json:"snippet,omitempty"`
}

type NearbyResponse struct {
	People []NearbyPerson `json:"people"`
}

// Rank lists visible people around the given point, ordered by the blended
// proximity/compatibility score. As a side effect it records the
// requester's location and schedules background scoring for the listed
// candidates.
func (uc *NearbyUseCase) Rank(ctx context.Context, userID int, req *NearbyRequest) (*NearbyResponse, error) {
	if err := geo.Validate(req.Lat, req.Lng); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	radius := clampRadius(req.RadiusM)
	limit := clampLimit(req.Limit)

	requester, err := uc.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := uc.profileRepo.UpdateLocation(ctx, userID, req.Lat, req.Lng); err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}
	requester.LocationLat = &req.Lat
	requester.LocationLng = &req.Lng

	dLat, dLng := geo.BoundingBox(req.Lat, radius)
	candidates, err := uc.profileRepo.FindNearby(ctx,
		req.Lat-dLat, req.Lat+dLat, req.Lng-dLng, req.Lng+dLng, userID)
	if err != nil {
		return nil, fmt.Errorf("find nearby: %w", err)
	}

	blocked, err := uc.blockRepo.BlockedSet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}

	ranked := ranking.RankProfiles(requester, candidates, radius, blocked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	byUser := make(map[int]*domain.Profile, len(candidates))
	for _, c := range candidates {
		byUser[c.UserID] = c
	}

	requesterHash := domain.ContentHash(requester.FreeText())
	people := make([]NearbyPerson, 0, len(ranked))
	for _, cand := range ranked {
		profile := byUser[cand.UserID]
		cell, err := geo.Quantize(*profile.LocationLat, *profile.LocationLng)
		if err != nil {
			continue
		}
		person := NearbyPerson{
			UserID:      cand.UserID,
			DisplayName: profile.DisplayName,
			Interests:   profile.Interests,
			Cell:        cell,
			DistanceM:   geo.RoundDistance(cand.DistanceM),
			RankScore:   cand.RankScore,
		}
		uc.attachAnalysis(ctx, userID, requesterHash, profile, &person)
		people = append(people, person)
	}

	// Background scoring for whoever just became visible. A failure here
	// degrades freshness, not the listing.
	job := pipeline.ScoreNearbyJob{
		UserID: userID, Lat: req.Lat, Lng: req.Lng, RadiusM: radius, Limit: limit,
	}
	if err := uc.jobs.Enqueue(ctx, job, 10); err != nil {
		uc.log.Warn("enqueue nearby scan failed", zap.Int("user_id", userID), zap.Error(err))
	}

	return &NearbyResponse{People: people}, nil
}

// attachAnalysis decorates a listed candidate with the cached AI judgment,
// but only while its hashes still match both profiles' text.
func (uc *NearbyUseCase) attachAnalysis(ctx context.Context, userID int, requesterHash string, other *domain.Profile, person *NearbyPerson) {
	analysis, err := uc.analysisRepo.Get(ctx, userID, other.UserID)
	if err != nil {
		return
	}
	if !analysis.Fresh(requesterHash, domain.ContentHash(other.FreeText())) {
		return
	}
	person.Score = &analysis.Score
	person.Snippet = &analysis.Snippet
}

func clampRadius(r float64) float64 {
	if r <= 0 {
		return DefaultRadiusM
	}
	if r > MaxRadiusM {
		return MaxRadiusM
	}
	return r
}

func clampLimit(l int) int {
	if l <= 0 {
		return DefaultLimit
	}
	if l > MaxLimit {
		return MaxLimit
	}
	return l
}
