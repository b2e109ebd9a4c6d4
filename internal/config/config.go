// Package config defines service configuration structures and loading hooks.
package config

import (
	"time"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is json or pretty.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the snapshot rebuild queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of rebuild workers.
	WorkerCount int `koanf:"worker_count"`

	// Storage selects the persistence backend: memory or postgres.
	Storage string `koanf:"storage"`

	// DatabaseURL is the PostgreSQL DSN, required for postgres storage.
	DatabaseURL string `koanf:"database_url"`

	// RedisURL enables the snapshot read cache when set.
	RedisURL string `koanf:"redis_url"`

	// CacheTTLSeconds bounds how long a cached snapshot pair is served.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// Timezone names the zone in which snapshot days are compared.
	Timezone string `koanf:"timezone"`

	// LeaderboardSize caps the leaderboard of each statistics level.
	LeaderboardSize int `koanf:"leaderboard_size"`

	// NotifyCooldownSeconds is how long notifications pause after the
	// provider rate limits.
	NotifyCooldownSeconds int `koanf:"notify_cooldown_seconds"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "json",
		Addr:                  ":9080",
		QueueSize:             1024,
		WorkerCount:           2,
		Storage:               StorageMemory,
		CacheTTLSeconds:       300,
		Timezone:              "UTC",
		LeaderboardSize:       10,
		NotifyCooldownSeconds: 900,
	}
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// CacheTTL returns the snapshot cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// NotifyCooldown returns the notification cooldown.
func (c *Config) NotifyCooldown() time.Duration {
	return time.Duration(c.NotifyCooldownSeconds) * time.Second
}
