package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/repository"
)

type analysisRepository struct {
	db *sqlx.DB
}

func NewAnalysisRepository(db *sqlx.DB) repository.AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Get(ctx context.Context, fromUserID, toUserID int) (*domain.ConnectionAnalysis, error) {
	var analysis domain.ConnectionAnalysis
	query := `
		SELECT from_user_id, to_user_id, score, snippet, description,
		       from_hash, to_hash, updated_at
		FROM connection_analyses
		WHERE from_user_id = $1 AND to_user_id = $2
	`
	err := r.db.GetContext(ctx, &analysis, query, fromUserID, toUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &analysis, nil
}

func (r *analysisRepository) Upsert(ctx context.Context, analysis *domain.ConnectionAnalysis) error {
	query := `
		INSERT INTO connection_analyses (
			from_user_id, to_user_id, score, snippet, description, from_hash, to_hash, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		ON CONFLICT (from_user_id, to_user_id) DO UPDATE SET
			score = EXCLUDED.score,
			snippet = EXCLUDED.snippet,
			description = EXCLUDED.description,
			from_hash = EXCLUDED.from_hash,
			to_hash = EXCLUDED.to_hash,
			updated_at = CURRENT_TIMESTAMP
		RETURNING updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		analysis.FromUserID, analysis.ToUserID, analysis.Score,
		analysis.Snippet, analysis.Description, analysis.FromHash, analysis.ToHash,
	).Scan(&analysis.UpdatedAt)
}
