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

// uniqueViolation is the SQLSTATE raised by the partial unique index on
// (from_user_id, to_user_id) WHERE status IN ('pending', 'accepted').
const uniqueViolation = "23505"

type waveRepository struct {
	db *sqlx.DB
}

func NewWaveRepository(db *sqlx.DB) repository.WaveRepository {
	return &waveRepository{db: db}
}

func (r *waveRepository) Create(ctx context.Context, wave *domain.Wave) error {
	query := `
		INSERT INTO waves (from_user_id, to_user_id, message, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(
		ctx, query,
		wave.FromUserID, wave.ToUserID, wave.Message, domain.WaveStatusPending,
	).Scan(&wave.ID, &wave.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrWaveAlreadyExists
		}
		return err
	}
	wave.Status = domain.WaveStatusPending
	return nil
}

func (r *waveRepository) GetByID(ctx context.Context, id int) (*domain.Wave, error) {
	var wave domain.Wave
	query := `SELECT id, from_user_id, to_user_id, message, status, created_at FROM waves WHERE id = $1`
	err := r.db.GetContext(ctx, &wave, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWaveNotFound
		}
		return nil, err
	}
	return &wave, nil
}

func (r *waveRepository) SettleIfPending(ctx context.Context, id int, status string) (bool, error) {
	query := `UPDATE waves SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, status, id, domain.WaveStatusPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *waveRepository) DeleteIfPending(ctx context.Context, id int) (bool, error) {
	query := `DELETE FROM waves WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, domain.WaveStatusPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *waveRepository) ListIncomingPending(ctx context.Context, userID int) ([]*domain.Wave, error) {
	var waves []*domain.Wave
	query := `
		SELECT id, from_user_id, to_user_id, message, status, created_at
		FROM waves WHERE to_user_id = $1 AND status = $2
		ORDER BY created_at DESC
	`
	err := r.db.SelectContext(ctx, &waves, query, userID, domain.WaveStatusPending)
	return waves, err
}

func (r *waveRepository) ListOutgoingPending(ctx context.Context, userID int) ([]*domain.Wave, error) {
	var waves []*domain.Wave
	query := `
		SELECT id, from_user_id, to_user_id, message, status, created_at
		FROM waves WHERE from_user_id = $1 AND status = $2
		ORDER BY created_at DESC
	`
	err := r.db.SelectContext(ctx, &waves, query, userID, domain.WaveStatusPending)
	return waves, err
}

func (r *waveRepository) VoidPendingBetween(ctx context.Context, userA, userB int) error {
	query := `
		DELETE FROM waves
		WHERE status = $1
		  AND ((from_user_id = $2 AND to_user_id = $3) OR (from_user_id = $3 AND to_user_id = $2))
	`
	_, err := r.db.ExecContext(ctx, query, domain.WaveStatusPending, userA, userB)
	return err
}
