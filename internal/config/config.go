package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env                string
	HTTPPort           string
	DatabaseURL        string
	StoreBackend       string // "postgres" or "memory"
	RedisAddr          string
	QueueBackend       string // "redis" or "memory"
	JWTIssuer          string
	JWTSigningKey      string
	AccessTTL          time.Duration
	IdentityServiceURL string
	IdentitySkip       bool
	HeartbeatFreshness time.Duration
	RateLimitPerMin    int
}

// Load returns application config populated from the environment, with an
// optional .env file and sensible defaults. When DATABASE_URL is absent
// the store backend falls back to the in-process implementation.
func Load() App {
	_ = godotenv.Load()

	cfg := App{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		StoreBackend:       getEnv("STORE_BACKEND", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		QueueBackend:       getEnv("QUEUE_BACKEND", "memory"),
		JWTIssuer:          getEnv("JWT_ISSUER", "sonic-attend"),
		JWTSigningKey:      getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:          durationEnv("ACCESS_TTL", 12*time.Hour),
		IdentityServiceURL: getEnv("IDENTITY_SERVICE_URL", ""),
		IdentitySkip:       boolEnv("IDENTITY_SKIP", false),
		HeartbeatFreshness: durationEnv("HEARTBEAT_FRESHNESS", 5*time.Minute),
		RateLimitPerMin:    intEnv("RATE_LIMIT_PER_MIN", 300),
	}
	if cfg.StoreBackend == "" {
		if cfg.DatabaseURL != "" {
			cfg.StoreBackend = "postgres"
		} else {
			cfg.StoreBackend = "memory"
		}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		switch val {
		case "1", "true", "TRUE":
			return true
		case "0", "false", "FALSE":
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
