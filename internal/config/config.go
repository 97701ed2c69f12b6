package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Pipeline     PipelineConfig
	Realtime     RealtimeConfig
	Logging      LoggingConfig
	Chatbot      ChatbotConfig
	GeminiAPIKey string
}

type ServerConfig struct {
	Host         string
	Port         int
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	AccessSecret string
}

// PipelineConfig tunes the analysis job queue and its worker pool.
type PipelineConfig struct {
	Concurrency       int
	MaxRetries        int
	CompletionsPerMin int
	LeaseTimeout      time.Duration
	PollInterval      time.Duration
}

type RealtimeConfig struct {
	SendBufferSize  int
	MaxMessageBytes int64
	PingInterval    time.Duration
	WriteTimeout    time.Duration
}

type LoggingConfig struct {
	Level    string
	Encoding string
}

// ChatbotConfig drives the seed-activity simulator process.
type ChatbotConfig struct {
	BaseURL      string
	BotUserIDs   []int
	PollInterval time.Duration
	ReplyDelay   time.Duration
}

// Load loads configuration from environment variables or a .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Try to read from .env file, but don't fail if it doesn't exist
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("PIPELINE_CONCURRENCY", 5)
	viper.SetDefault("PIPELINE_MAX_RETRIES", 3)
	viper.SetDefault("PIPELINE_COMPLETIONS_PER_MIN", 20)
	viper.SetDefault("PIPELINE_LEASE_TIMEOUT_SEC", 60)
	viper.SetDefault("PIPELINE_POLL_INTERVAL_MS", 500)
	viper.SetDefault("REALTIME_SEND_BUFFER", 256)
	viper.SetDefault("REALTIME_MAX_MESSAGE_BYTES", 4096)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_ENCODING", "json")
	viper.SetDefault("CHATBOT_BASE_URL", "http://localhost:8080")
	viper.SetDefault("CHATBOT_POLL_INTERVAL_SEC", 15)
	viper.SetDefault("CHATBOT_REPLY_DELAY_SEC", 20)

	config := &Config{
		Server: ServerConfig{
			Host:         viper.GetString("SERVER_HOST"),
			Port:         viper.GetInt("SERVER_PORT"),
			Env:          viper.GetString("ENV"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			AccessSecret: viper.GetString("JWT_ACCESS_SECRET"),
		},
		Pipeline: PipelineConfig{
			Concurrency:       viper.GetInt("PIPELINE_CONCURRENCY"),
			MaxRetries:        viper.GetInt("PIPELINE_MAX_RETRIES"),
			CompletionsPerMin: viper.GetInt("PIPELINE_COMPLETIONS_PER_MIN"),
			LeaseTimeout:      time.Duration(viper.GetInt("PIPELINE_LEASE_TIMEOUT_SEC")) * time.Second,
			PollInterval:      time.Duration(viper.GetInt("PIPELINE_POLL_INTERVAL_MS")) * time.Millisecond,
		},
		Realtime: RealtimeConfig{
			SendBufferSize:  viper.GetInt("REALTIME_SEND_BUFFER"),
			MaxMessageBytes: viper.GetInt64("REALTIME_MAX_MESSAGE_BYTES"),
			PingInterval:    30 * time.Second,
			WriteTimeout:    10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    viper.GetString("LOG_LEVEL"),
			Encoding: viper.GetString("LOG_ENCODING"),
		},
		Chatbot: ChatbotConfig{
			BaseURL:      viper.GetString("CHATBOT_BASE_URL"),
			BotUserIDs:   viper.GetIntSlice("CHATBOT_BOT_USER_IDS"),
			PollInterval: time.Duration(viper.GetInt("CHATBOT_POLL_INTERVAL_SEC")) * time.Second,
			ReplyDelay:   time.Duration(viper.GetInt("CHATBOT_REPLY_DELAY_SEC")) * time.Second,
		},
		GeminiAPIKey: viper.GetString("GEMINI_API_KEY"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates critical configuration values.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.JWT.AccessSecret == "" {
		return fmt.Errorf("JWT access secret is required")
	}
	if len(c.JWT.AccessSecret) < 32 {
		return fmt.Errorf("JWT access secret must be at least 32 characters")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline concurrency must be at least 1")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
