package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                 string
	JWTSecret            string
	SessionTTL           time.Duration
	CORSOrigin           string
	RedisURL             string
	BookingWebhookSecret string
	SeedFile             string
	LogLevel             slog.Level
	SendRatePerSecond    float64
	SendBurst            int
}

// Load reads the process environment, after applying a .env file when one
// exists in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		JWTSecret:            getEnv("JWT_SECRET", "dev-secret-change-me"),
		SessionTTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
		CORSOrigin:           getEnv("CORS_ORIGIN", "http://localhost:5173"),
		RedisURL:             getEnv("REDIS_URL", ""),
		BookingWebhookSecret: getEnv("BOOKING_WEBHOOK_SECRET", ""),
		SeedFile:             getEnv("SEED_FILE", ""),
		LogLevel:             parseLevel(getEnv("LOG_LEVEL", "info")),
		SendRatePerSecond:    getEnvFloat("SEND_RATE_PER_SECOND", 2),
		SendBurst:            getEnvInt("SEND_BURST", 10),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
