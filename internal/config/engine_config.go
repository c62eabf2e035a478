package config

import (
	"os"
	"strconv"
	"time"
)

// EngineConfig holds the dunning engine knobs, loaded from the environment
type EngineConfig struct {
	// PollInterval is the scheduler cycle cadence. Recommended 1-10 minutes.
	PollInterval time.Duration
	// BatchLimit caps how many due executions one poll cycle fetches
	BatchLimit int
	// WorkerCount bounds the executions advanced in parallel per cycle
	WorkerCount int
	// LeaseTimeout is how long a worker lease is honored before another
	// worker may steal it
	LeaseTimeout time.Duration
	// HandlerTimeout bounds one handler call. Must stay below PollInterval
	// so a hanging collaborator cannot occupy a worker across cycles.
	HandlerTimeout time.Duration
	// MaxAttempts bounds transport-level retries within one step
	MaxAttempts int
	// RetryBaseDelay seeds the exponential backoff between step attempts
	RetryBaseDelay time.Duration
	// DayDuration is the wall-clock length of one "delay day". Always 24h in
	// production; staging compresses it to exercise whole campaigns quickly.
	DayDuration time.Duration
}

// Load reads the engine configuration from environment variables
func Load() *EngineConfig {
	cfg := &EngineConfig{
		PollInterval:   getEnvAsDuration("DUNNING_POLL_INTERVAL", 5*time.Minute),
		BatchLimit:     getEnvAsInt("DUNNING_BATCH_LIMIT", 100),
		WorkerCount:    getEnvAsInt("DUNNING_WORKER_COUNT", 8),
		LeaseTimeout:   getEnvAsDuration("DUNNING_LEASE_TIMEOUT", 2*time.Minute),
		HandlerTimeout: getEnvAsDuration("DUNNING_HANDLER_TIMEOUT", 30*time.Second),
		MaxAttempts:    getEnvAsInt("DUNNING_MAX_ATTEMPTS", 3),
		RetryBaseDelay: getEnvAsDuration("DUNNING_RETRY_BASE_DELAY", 500*time.Millisecond),
		DayDuration:    getEnvAsDuration("DUNNING_DAY_DURATION", 24*time.Hour),
	}
	if cfg.HandlerTimeout >= cfg.PollInterval {
		cfg.HandlerTimeout = cfg.PollInterval / 2
	}
	return cfg
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
