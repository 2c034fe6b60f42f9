package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends for the message store.
const (
	StorePebble  = "pebble"
	StoreSurreal = "surreal"
)

// Config holds all runtime configuration for the server.
type Config struct {
	Addr string

	// AuthTimeout bounds the handshake: a connection that has not
	// authenticated within this window is closed before any state exists.
	AuthTimeout time.Duration

	// MaxContentLen bounds message content length in bytes.
	MaxContentLen int

	StoreBackend string
	PebblePath   string

	SurrealURL  string
	SurrealNS   string
	SurrealDB   string
	SurrealUser string
	SurrealPass string

	// RedisAddr enables the persisted-notification service when set.
	RedisAddr string

	// AuthSecret signs session credentials for the built-in verifier.
	AuthSecret string
}

// New loads configuration from the environment, reading .env when present.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:          getEnv("PULSE_ADDR", ":8080"),
		AuthTimeout:   getDuration("PULSE_AUTH_TIMEOUT", 10*time.Second),
		MaxContentLen: getInt("PULSE_MAX_CONTENT_LEN", 4000),
		StoreBackend:  getEnv("PULSE_STORE", StorePebble),
		PebblePath:    getEnv("PULSE_PEBBLE_PATH", "data/messages"),
		SurrealURL:    os.Getenv("SURREAL_URL"),
		SurrealNS:     os.Getenv("SURREAL_NS"),
		SurrealDB:     os.Getenv("SURREAL_DB"),
		SurrealUser:   os.Getenv("SURREAL_USER"),
		SurrealPass:   os.Getenv("SURREAL_PASS"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		AuthSecret:    os.Getenv("PULSE_AUTH_SECRET"),
	}

	switch cfg.StoreBackend {
	case StorePebble:
	case StoreSurreal:
		if cfg.SurrealURL == "" || cfg.SurrealNS == "" || cfg.SurrealDB == "" {
			return nil, fmt.Errorf("store backend %q requires SURREAL_URL, SURREAL_NS and SURREAL_DB", cfg.StoreBackend)
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("PULSE_AUTH_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
