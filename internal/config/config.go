package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	Port        string
	CORSOrigins []string

	DatabaseURL string

	JWTSecret   string
	JWTAudience string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAIPromptID   string
	OpenAITimeout    time.Duration
	OpenAIMaxRetries int

	ScoringWebhookURL string
	ScoringTimeout    time.Duration
	ScoringAsync      bool

	RedisAddr           string
	LeaderboardCacheTTL time.Duration

	LogJSON  bool
	LogDebug bool
}

// Load reads configuration from the environment, loading .env first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "*")),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTAudience:         getEnv("JWT_AUDIENCE", "authenticated"),
		OpenAIAPIKey:        strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:       strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com"), "/"),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4.1"),
		OpenAIPromptID:      os.Getenv("OPENAI_PROMPT_ID"),
		OpenAITimeout:       time.Duration(getEnvAsInt("OPENAI_TIMEOUT_SECONDS", 60)) * time.Second,
		OpenAIMaxRetries:    getEnvAsInt("OPENAI_MAX_RETRIES", 2),
		ScoringWebhookURL:   os.Getenv("SCORING_WEBHOOK_URL"),
		ScoringTimeout:      time.Duration(getEnvAsInt("SCORING_TIMEOUT_SECONDS", 150)) * time.Second,
		ScoringAsync:        getEnvAsBool("SCORING_ASYNC", true),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		LeaderboardCacheTTL: time.Duration(getEnvAsInt("LEADERBOARD_CACHE_TTL_SECONDS", 30)) * time.Second,
		LogJSON:             getEnvAsBool("LOG_JSON", false),
		LogDebug:            getEnvAsBool("LOG_DEBUG", false),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.OpenAIMaxRetries < 0 {
		cfg.OpenAIMaxRetries = 0
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
