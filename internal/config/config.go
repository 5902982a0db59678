package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Auth
	JWTSecret      string
	GoogleClientID string

	// Recommendation service
	RecommendLocalURL   string
	RecommendProdURL    string
	UpstreamConcurrency int
	UpstreamTimeout     time.Duration

	// Per-user chat submissions allowed each minute
	ChatRequestsPerMin int

	// Conversations idle this long are dropped. Zero keeps them forever.
	ConversationIdleTTL time.Duration

	// Frontend
	FrontendURL string

	LogLevel string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		Env:                 getEnvOrDefault("ENV", "development"),
		DatabaseURL:         mustGetEnv("DATABASE_URL"),
		RedisURL:            mustGetEnv("REDIS_URL"),
		JWTSecret:           mustGetEnv("JWT_SECRET"),
		GoogleClientID:      mustGetEnv("GOOGLE_CLIENT_ID"),
		RecommendLocalURL:   getEnvOrDefault("RECOMMEND_LOCAL_URL", "http://localhost:8000"),
		RecommendProdURL:    getEnvOrDefault("RECOMMEND_PROD_URL", "https://yojanaai.onrender.com"),
		UpstreamConcurrency: getEnvAsIntOrDefault("UPSTREAM_CONCURRENCY", 10),
		UpstreamTimeout:     time.Duration(getEnvAsIntOrDefault("UPSTREAM_TIMEOUT_SECONDS", 60)) * time.Second,
		ChatRequestsPerMin:  getEnvAsIntOrDefault("CHAT_REQUESTS_PER_MINUTE", 20),
		ConversationIdleTTL: time.Duration(getEnvAsIntOrDefault("CONVERSATION_IDLE_MINUTES", 60)) * time.Minute,
		FrontendURL:         getEnvOrDefault("FRONTEND_URL", "http://localhost:4200"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return cfg
}

// ScraperConfig drives the myScheme scraper.
type ScraperConfig struct {
	APIKey   string
	DataDir  string
	LogLevel string
}

func LoadScraper() *ScraperConfig {
	godotenv.Load()

	return &ScraperConfig{
		APIKey:   mustGetEnv("MYSCHEME_API_KEY"),
		DataDir:  getEnvOrDefault("SCRAPE_DATA_DIR", "data"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

// ClientConfig drives the terminal chat client.
type ClientConfig struct {
	IDToken  string
	Host     string
	UserName string
	LocalURL string
	ProdURL  string
	Timeout  time.Duration
}

func LoadClient() *ClientConfig {
	godotenv.Load()

	return &ClientConfig{
		IDToken:  os.Getenv("YOJANA_ID_TOKEN"),
		Host:     getEnvOrDefault("YOJANA_HOST", "localhost"),
		UserName: getEnvOrDefault("YOJANA_USER_NAME", os.Getenv("USER")),
		LocalURL: getEnvOrDefault("RECOMMEND_LOCAL_URL", "http://localhost:8000"),
		ProdURL:  getEnvOrDefault("RECOMMEND_PROD_URL", "https://yojanaai.onrender.com"),
		Timeout:  time.Duration(getEnvAsIntOrDefault("UPSTREAM_TIMEOUT_SECONDS", 60)) * time.Second,
	}
}

// NewLogger builds a production zap logger at the given level name.
// Unknown names fall back to info.
func NewLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
