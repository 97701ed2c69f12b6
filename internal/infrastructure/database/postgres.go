package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/config"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

const pingTimeout = 5 * time.Second

// NewPostgresDB opens and verifies the sqlx connection pool.
func NewPostgresDB(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Sized for the HTTP handlers plus the pipeline workers; the pool is
	// shared by both.
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(50)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.L().Info("postgres connected",
		zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return db, nil
}
