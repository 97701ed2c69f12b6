package container

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/config"
	"github.com/ripplehq/ripple-backend/internal/delivery/http"
	"github.com/ripplehq/ripple-backend/internal/delivery/http/handler"
	"github.com/ripplehq/ripple-backend/internal/delivery/http/middleware"
	"github.com/ripplehq/ripple-backend/internal/infrastructure/database"
	"github.com/ripplehq/ripple-backend/internal/infrastructure/gemini"
	"github.com/ripplehq/ripple-backend/internal/infrastructure/server"
	"github.com/ripplehq/ripple-backend/internal/pipeline"
	"github.com/ripplehq/ripple-backend/internal/realtime"
	"github.com/ripplehq/ripple-backend/internal/repository/postgres"
	"github.com/ripplehq/ripple-backend/internal/usecase/chat"
	"github.com/ripplehq/ripple-backend/internal/usecase/group"
	"github.com/ripplehq/ripple-backend/internal/usecase/nearby"
	"github.com/ripplehq/ripple-backend/internal/usecase/profile"
	"github.com/ripplehq/ripple-backend/internal/usecase/wave"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	DB       *sqlx.DB
	Redis    *redis.Client
	Server   *server.Server
	Gemini   *gemini.Client
	Hub      *realtime.Hub
	Pipeline *pipeline.Pipeline
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	geminiClient, err := gemini.NewClient(cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	// Repositories
	profileRepo := postgres.NewProfileRepository(db)
	waveRepo := postgres.NewWaveRepository(db)
	convRepo := postgres.NewConversationRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	analysisRepo := postgres.NewAnalysisRepository(db)
	blockRepo := postgres.NewBlockRepository(db)

	// Realtime hub
	hub := realtime.NewHub()
	go hub.Run()

	// Analysis pipeline
	queue := pipeline.NewQueue(redisClient, cfg.Pipeline.LeaseTimeout, cfg.Pipeline.MaxRetries)
	pipe, err := pipeline.New(cfg.Pipeline, queue, profileRepo, analysisRepo, blockRepo, geminiClient, hub)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	pipe.Start()

	// Use cases
	nearbyUseCase := nearby.NewNearbyUseCase(profileRepo, blockRepo, analysisRepo, pipe)
	waveUseCase := wave.NewWaveUseCase(waveRepo, convRepo, profileRepo, blockRepo, hub, pipe)
	chatUseCase := chat.NewChatUseCase(convRepo, messageRepo, hub)
	groupUseCase := group.NewGroupUseCase(convRepo, geminiClient, hub)
	profileUseCase := profile.NewProfileUseCase(profileRepo, analysisRepo, blockRepo, waveRepo, geminiClient, pipe)

	// Handlers
	profileHandler := handler.NewProfileHandler(profileUseCase)
	nearbyHandler := handler.NewNearbyHandler(nearbyUseCase)
	waveHandler := handler.NewWaveHandler(waveUseCase)
	chatHandler := handler.NewChatHandler(chatUseCase)
	groupHandler := handler.NewGroupHandler(groupUseCase)
	realtimeHandler := realtime.NewHandler(hub, convRepo, cfg.Realtime)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.AccessSecret)

	router := http.NewRouter(
		profileHandler,
		nearbyHandler,
		waveHandler,
		chatHandler,
		groupHandler,
		realtimeHandler,
		authMiddleware,
	)

	srv := server.NewServer(&cfg.Server, router.Setup())

	return &Container{
		Config:   cfg,
		DB:       db,
		Redis:    redisClient,
		Server:   srv,
		Gemini:   geminiClient,
		Hub:      hub,
		Pipeline: pipe,
	}, nil
}

// Close releases all resources in reverse construction order.
func (c *Container) Close() error {
	c.Pipeline.Shutdown()
	c.Hub.Stop()
	c.Gemini.Close()

	var firstErr error
	if err := c.Redis.Close(); err != nil {
		firstErr = err
	}
	if err := c.DB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		logger.L().Warn("close container", zap.Error(firstErr))
	}
	return firstErr
}
