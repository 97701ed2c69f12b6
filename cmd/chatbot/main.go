package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/chatbot"
	"github.com/ripplehq/ripple-backend/internal/config"
	"github.com/ripplehq/ripple-backend/internal/infrastructure/gemini"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Build(cfg.Logging.Level, cfg.Logging.Encoding)
	logger.ReplaceGlobal(log)
	defer log.Sync()

	if len(cfg.Chatbot.BotUserIDs) == 0 {
		log.Fatal("no bot user ids configured")
	}

	var ai *gemini.Client
	if cfg.GeminiAPIKey != "" {
		ai, err = gemini.NewClient(cfg.GeminiAPIKey)
		if err != nil {
			log.Warn("gemini unavailable, using canned replies", zap.Error(err))
			ai = nil
		} else {
			defer ai.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	for _, userID := range cfg.Chatbot.BotUserIDs {
		token, err := chatbot.SignToken(cfg.JWT.AccessSecret, userID, 30*24*time.Hour)
		if err != nil {
			log.Fatal("sign bot token", zap.Int("user_id", userID), zap.Error(err))
		}
		client := chatbot.NewAPIClient(cfg.Chatbot.BaseURL, token)

		var replier interface {
			Reply(ctx context.Context, transcript string) (string, error)
		}
		if ai != nil {
			replier = ai
		}
		bot := chatbot.NewBot(client, userID, cfg.Chatbot.PollInterval, cfg.Chatbot.ReplyDelay, replier)

		wg.Add(1)
		go func() {
			defer wg.Done()
			bot.Run(ctx)
		}()
	}

	<-quit
	cancel()
	wg.Wait()
}
