package profile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/geo"
	"github.com/ripplehq/ripple-backend/internal/pipeline"
	"github.com/ripplehq/ripple-backend/internal/repository"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

type enqueuer interface {
	Enqueue(ctx context.Context, job pipeline.Job, priority int) error
}

type moderator interface {
	Moderate(ctx context.Context, text string) (bool, error)
}

type ProfileUseCase struct {
	profileRepo  repository.ProfileRepository
	analysisRepo repository.AnalysisRepository
	blockRepo    repository.BlockRepository
	waveRepo     repository.WaveRepository
	mod          moderator
	jobs         enqueuer
	log          *zap.Logger
}

func NewProfileUseCase(
	profileRepo repository.ProfileRepository,
	analysisRepo repository.AnalysisRepository,
	blockRepo repository.BlockRepository,
	waveRepo repository.WaveRepository,
	mod moderator,
	jobs enqueuer,
) *ProfileUseCase {
	return &ProfileUseCase{
		profileRepo:  profileRepo,
		analysisRepo: analysisRepo,
		blockRepo:    blockRepo,
		waveRepo:     waveRepo,
		mod:          mod,
		jobs:         jobs,
		log:          logger.L().Named("profile"),
	}
}

// UpdateRequest edits the caller's own profile. Nil fields stay untouched.
type UpdateRequest struct {
	DisplayName *string  `json:"display_name" binding:"omitempty,min=1,max=60"`
	Bio         *string  `json:"bio" binding:"omitempty,max=1000"`
	LookingFor  *string  `json:"looking_for" binding:"omitempty,max=500"`
	Interests   []string `json:"interests" binding:"omitempty,max=16,dive,min=1,max=40"`
	Visibility  *string  `json:"visibility" binding:"omitempty,oneof=visible matches_only hidden"`
}

// LocationRequest updates the caller's position.
type LocationRequest struct {
	Lat float64 `json:"lat" binding:"required,latitude"`
	Lng float64 `json:"lng" binding:"required,longitude"`
}

// PublicProfile is what one user sees of another. Location surfaces only
// as the privacy cell and a distance rounded to 100m.
type PublicProfile struct {
	UserID      int       `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Bio         *string   `json:"bio,omitempty"`
	Interests   []string  `json:"interests"`
	Cell        *geo.Cell `json:"cell,omitempty"`
	DistanceM   *float64  `json:"distance_m,omitempty"`
	Score       *int      `json:"score,omitempty"`
	Snippet     *string   `json:"snippet,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// AnalysisStatus reports whether the cached judgment for a pair is usable.
type AnalysisStatus struct {
	Ready    bool                       `json:"ready"`
	Analysis *domain.ConnectionAnalysis `json:"analysis,omitempty"`
}

// Get returns the caller's own profile.
func (uc *ProfileUseCase) Get(ctx context.Context, userID int) (*domain.Profile, error) {
	return uc.profileRepo.GetByUserID(ctx, userID)
}

// Update edits the caller's profile. Free text passes moderation; a text
// change schedules the summary/embedding refresh and implicitly stales
// every cached analysis through the content hash.
func (uc *ProfileUseCase) Update(ctx context.Context, userID int, req *UpdateRequest) (*domain.Profile, error) {
	profile, err := uc.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	oldText := profile.FreeText()

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: empty display name", domain.ErrInvalidInput)
		}
		if err := uc.moderate(ctx, name); err != nil {
			return nil, err
		}
		profile.DisplayName = name
	}
	if req.Bio != nil {
		if err := uc.moderate(ctx, *req.Bio); err != nil {
			return nil, err
		}
		profile.Bio = req.Bio
	}
	if req.LookingFor != nil {
		if err := uc.moderate(ctx, *req.LookingFor); err != nil {
			return nil, err
		}
		profile.LookingFor = req.LookingFor
	}
	if req.Interests != nil {
		profile.Interests = normalizeInterests(req.Interests)
	}
	if req.Visibility != nil {
		profile.Visibility = *req.Visibility
	}

	if err := uc.profileRepo.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if profile.FreeText() != oldText {
		job := pipeline.RefreshProfileJob{UserID: userID}
		if err := uc.jobs.Enqueue(ctx, job, 5); err != nil {
			uc.log.Warn("enqueue profile refresh failed", zap.Int("user_id", userID), zap.Error(err))
		}
	}
	return profile, nil
}

// UpdateLocation stamps the caller's current position.
func (uc *ProfileUseCase) UpdateLocation(ctx context.Context, userID int, req *LocationRequest) error {
	if err := geo.Validate(req.Lat, req.Lng); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return uc.profileRepo.UpdateLocation(ctx, userID, req.Lat, req.Lng)
}

// View returns another user's public profile. Exact coordinates never
// leave the server; a fresh cached analysis rides along when one exists.
// Hidden profiles and blocked pairs read as not found.
func (uc *ProfileUseCase) View(ctx context.Context, viewerID, targetID int) (*PublicProfile, error) {
	if viewerID == targetID {
		return nil, fmt.Errorf("%w: use the own-profile endpoint", domain.ErrInvalidInput)
	}
	blocked, err := uc.blockRepo.ExistsBetween(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, domain.ErrProfileNotFound
	}

	target, err := uc.profileRepo.GetByUserID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Visibility == domain.VisibilityHidden {
		return nil, domain.ErrProfileNotFound
	}

	public := &PublicProfile{
		UserID:      target.UserID,
		DisplayName: target.DisplayName,
		Bio:         target.Bio,
		Interests:   target.Interests,
	}

	if target.HasLocation() {
		if cell, err := geo.Quantize(*target.LocationLat, *target.LocationLng); err == nil {
			public.Cell = &cell
		}
		viewer, err := uc.profileRepo.GetByUserID(ctx, viewerID)
		if err == nil && viewer.HasLocation() {
			d := geo.RoundDistance(geo.Distance(
				*viewer.LocationLat, *viewer.LocationLng,
				*target.LocationLat, *target.LocationLng))
			public.DistanceM = &d
		}
	}

	uc.attachAnalysis(ctx, viewerID, target, public)
	return public, nil
}

// EnsureAnalysis nudges the pipeline for a pair and reports the current
// cache state. Safe to call repeatedly; the queue collapses duplicates.
func (uc *ProfileUseCase) EnsureAnalysis(ctx context.Context, userID, otherUserID int) (*AnalysisStatus, error) {
	if userID == otherUserID {
		return nil, fmt.Errorf("%w: cannot analyze yourself", domain.ErrInvalidInput)
	}
	blocked, err := uc.blockRepo.ExistsBetween(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, domain.ErrBlocked
	}

	status := &AnalysisStatus{}
	analysis, err := uc.analysisRepo.Get(ctx, userID, otherUserID)
	if err == nil {
		me, meErr := uc.profileRepo.GetByUserID(ctx, userID)
		other, otherErr := uc.profileRepo.GetByUserID(ctx, otherUserID)
		if meErr == nil && otherErr == nil &&
			analysis.Fresh(domain.ContentHash(me.FreeText()), domain.ContentHash(other.FreeText())) {
			status.Ready = true
			status.Analysis = analysis
			return status, nil
		}
	}

	job := pipeline.NewScorePairJob(userID, otherUserID)
	if err := uc.jobs.Enqueue(ctx, job, 1); err != nil {
		return nil, fmt.Errorf("%w: enqueue analysis: %v", domain.ErrTransient, err)
	}
	return status, nil
}

// Block hides the pair from each other and voids any pending waves between
// them in both directions.
func (uc *ProfileUseCase) Block(ctx context.Context, userID, targetID int) error {
	if userID == targetID {
		return fmt.Errorf("%w: cannot block yourself", domain.ErrInvalidInput)
	}
	if err := uc.blockRepo.Create(ctx, userID, targetID); err != nil {
		return err
	}
	if err := uc.waveRepo.VoidPendingBetween(ctx, userID, targetID); err != nil {
		uc.log.Warn("void pending waves failed",
			zap.Int("blocker", userID), zap.Int("blocked", targetID), zap.Error(err))
	}
	return nil
}

// Unblock removes the caller's block. The other direction, if present,
// stays.
func (uc *ProfileUseCase) Unblock(ctx context.Context, userID, targetID int) error {
	return uc.blockRepo.Delete(ctx, userID, targetID)
}

func (uc *ProfileUseCase) attachAnalysis(ctx context.Context, viewerID int, target *domain.Profile, public *PublicProfile) {
	analysis, err := uc.analysisRepo.Get(ctx, viewerID, target.UserID)
	if err != nil {
		return
	}
	viewer, err := uc.profileRepo.GetByUserID(ctx, viewerID)
	if err != nil {
		return
	}
	if !analysis.Fresh(domain.ContentHash(viewer.FreeText()), domain.ContentHash(target.FreeText())) {
		return
	}
	public.Score = &analysis.Score
	public.Snippet = &analysis.Snippet
	public.Description = &analysis.Description
}

func (uc *ProfileUseCase) moderate(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ok, err := uc.mod.Moderate(ctx, text)
	if err != nil {
		uc.log.Warn("moderation unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return domain.ErrModerationRejected
	}
	return nil
}

func normalizeInterests(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
