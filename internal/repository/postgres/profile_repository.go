package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/repository"
)

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	query := `
		INSERT INTO profiles (
			user_id, display_name, bio, looking_for, summary, interests, embedding,
			location_lat, location_lng, location_updated_at, visibility
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(
		ctx, query,
		profile.UserID, profile.DisplayName, profile.Bio, profile.LookingFor,
		profile.Summary, pq.Array(profile.Interests), pq.Array(profile.Embedding),
		profile.LocationLat, profile.LocationLng, profile.LocationUpdatedAt,
		profile.Visibility,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID int) (*domain.Profile, error) {
	var profile domain.Profile
	query := `
		SELECT id, user_id, display_name, bio, looking_for, summary, interests,
		       embedding, location_lat, location_lng, location_updated_at,
		       visibility, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID, &profile.UserID, &profile.DisplayName, &profile.Bio,
		&profile.LookingFor, &profile.Summary, pq.Array(&profile.Interests),
		pq.Array(&profile.Embedding), &profile.LocationLat, &profile.LocationLng,
		&profile.LocationUpdatedAt, &profile.Visibility,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	query := `
		UPDATE profiles
		SET display_name = $1, bio = $2, looking_for = $3, interests = $4,
		    visibility = $5, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $6
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(
		ctx, query,
		profile.DisplayName, profile.Bio, profile.LookingFor,
		pq.Array(profile.Interests), profile.Visibility, profile.UserID,
	).Scan(&profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProfileNotFound
	}
	return err
}

func (r *profileRepository) UpdateLocation(ctx context.Context, userID int, lat, lng float64) error {
	query := `
		UPDATE profiles
		SET location_lat = $1, location_lng = $2,
		    location_updated_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, lat, lng, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (r *profileRepository) UpdateEnrichment(ctx context.Context, userID int, summary string, embedding []float64, interests []string) error {
	query := `
		UPDATE profiles
		SET summary = $1, embedding = $2, interests = $3, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $4
	`
	result, err := r.db.ExecContext(ctx, query, summary, pq.Array(embedding), pq.Array(interests), userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (r *profileRepository) FindNearby(ctx context.Context, minLat, maxLat, minLng, maxLng float64, excludeUserID int) ([]*domain.Profile, error) {
	query := `
		SELECT id, user_id, display_name, bio, looking_for, summary, interests,
		       embedding, location_lat, location_lng, location_updated_at,
		       visibility, created_at, updated_at
		FROM profiles
		WHERE visibility = $1
		  AND location_lat IS NOT NULL AND location_lng IS NOT NULL
		  AND location_lat BETWEEN $2 AND $3
		  AND location_lng BETWEEN $4 AND $5
		  AND user_id <> $6
	`
	rows, err := r.db.QueryContext(ctx, query, domain.VisibilityVisible,
		minLat, maxLat, minLng, maxLng, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		var profile domain.Profile
		if err := rows.Scan(
			&profile.ID, &profile.UserID, &profile.DisplayName, &profile.Bio,
			&profile.LookingFor, &profile.Summary, pq.Array(&profile.Interests),
			pq.Array(&profile.Embedding), &profile.LocationLat, &profile.LocationLng,
			&profile.LocationUpdatedAt, &profile.Visibility,
			&profile.CreatedAt, &profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, &profile)
	}
	return profiles, rows.Err()
}
