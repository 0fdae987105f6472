package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	TokenTTL  time.Duration

	WSAuthTimeout   time.Duration
	SignalRateLimit time.Duration
	NotifRetention  time.Duration
	ReapSchedule    string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: getEnv("JWT_SECRET", "12345"),

		ReapSchedule: getEnv("REAP_SCHEDULE", "@hourly"),
	}

	var err error
	cfg.TokenTTL, err = time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	cfg.WSAuthTimeout, err = time.ParseDuration(getEnv("WS_AUTH_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_AUTH_TIMEOUT: %w", err)
	}
	cfg.SignalRateLimit, err = time.ParseDuration(getEnv("SIGNAL_RATE_LIMIT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIGNAL_RATE_LIMIT: %w", err)
	}
	cfg.NotifRetention, err = time.ParseDuration(getEnv("NOTIF_RETENTION", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIF_RETENTION: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
