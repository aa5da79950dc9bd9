package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the call backend.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration

	PushGatewayURL  string
	PushTimeout     time.Duration
	NotifyQueueSize int
	NotifyWorkers   int

	RelayURL string

	OfferTTL     time.Duration
	CandidateTTL time.Duration
	// SweepInterval drives the mailbox sweeper; 0 disables it and leaves
	// expired records to lazy cleanup at read time.
	SweepInterval time.Duration

	// RingTimeout auto-rejects sessions stuck in pending; 0 leaves them
	// pending indefinitely.
	RingTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "kriptonit"),
		AllowAnyOrigin:   false,
		DatabaseURL:      envTrimmed("DATABASE_URL"),
		JWTSecret:        envOrDefault("JWT_SECRET", "kriptonit_secret_key_2025"),
		TokenTTL:         30 * 24 * time.Hour,
		PushGatewayURL:   envTrimmed("PUSH_GATEWAY_URL"),
		PushTimeout:      5 * time.Second,
		NotifyQueueSize:  256,
		NotifyWorkers:    4,
		RelayURL:         envTrimmed("RELAY_URL"),
		OfferTTL:         2 * time.Minute,
		CandidateTTL:     5 * time.Minute,
		SweepInterval:    time.Minute,
		RingTimeout:      60 * time.Second,
		ShutdownTimeout:  15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTTL, err = durationFromEnv("AUTH_TOKEN_TTL", cfg.TokenTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.PushTimeout, err = durationFromEnv("PUSH_TIMEOUT", cfg.PushTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.NotifyQueueSize, err = intFromEnv("NOTIFY_QUEUE_SIZE", cfg.NotifyQueueSize)
	if err != nil {
		return Config{}, err
	}
	cfg.NotifyWorkers, err = intFromEnv("NOTIFY_WORKERS", cfg.NotifyWorkers)
	if err != nil {
		return Config{}, err
	}
	cfg.OfferTTL, err = durationFromEnv("SIGNALING_OFFER_TTL", cfg.OfferTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.CandidateTTL, err = durationFromEnv("SIGNALING_CANDIDATE_TTL", cfg.CandidateTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = durationFromEnv("SIGNALING_SWEEP_INTERVAL", cfg.SweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.RingTimeout, err = durationFromEnv("CALL_RING_TIMEOUT", cfg.RingTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if cfg.TokenTTL < time.Minute {
		return Config{}, fmt.Errorf("AUTH_TOKEN_TTL must be at least 1m")
	}
	if cfg.NotifyQueueSize <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	if cfg.NotifyWorkers <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_WORKERS must be positive")
	}
	if cfg.OfferTTL <= 0 {
		return Config{}, fmt.Errorf("SIGNALING_OFFER_TTL must be positive")
	}
	if cfg.CandidateTTL <= 0 {
		return Config{}, fmt.Errorf("SIGNALING_CANDIDATE_TTL must be positive")
	}
	if cfg.SweepInterval < 0 {
		return Config{}, fmt.Errorf("SIGNALING_SWEEP_INTERVAL must be >= 0")
	}
	if cfg.RingTimeout < 0 {
		return Config{}, fmt.Errorf("CALL_RING_TIMEOUT must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
