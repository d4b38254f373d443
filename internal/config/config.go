package config

import (
	"os"
	"strconv"
	"time"
)

// Matching holds the tunables of the matching core. Everything has a
// default so an empty environment still runs.
type Matching struct {
	MaxCandidates      int           // resting orders fetched per distribution
	LeaseTTL           time.Duration // per-stock distribution lease lifetime
	ReconcileInterval  time.Duration
	ReconcileWindow    time.Duration // trailing window for missing-order recovery
	ReconcileBatchSize int
	ReconcilePause     time.Duration // pause between recovery pages
	Workers            int           // coordinator worker goroutines
}

func LoadMatching() Matching {
	return Matching{
		MaxCandidates:      envInt("MATCH_MAX_CANDIDATES", 100),
		LeaseTTL:           envDuration("MATCH_LEASE_TTL", 5*time.Second),
		ReconcileInterval:  envDuration("RECONCILE_INTERVAL", time.Minute),
		ReconcileWindow:    envDuration("RECONCILE_WINDOW", 5*time.Minute),
		ReconcileBatchSize: envInt("RECONCILE_BATCH_SIZE", 100),
		ReconcilePause:     envDuration("RECONCILE_PAUSE", 100*time.Millisecond),
		Workers:            envInt("MATCH_WORKERS", 4),
	}
}

// Database is the Postgres connection surface.
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func LoadDatabase() Database {
	return Database{
		Host:     envStr("POSTGRES_HOST", "localhost"),
		Port:     envStr("POSTGRES_PORT", "5432"),
		User:     envStr("POSTGRES_USER", "postgres"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Name:     envStr("POSTGRES_DB_NAME", "trading"),
		SSLMode:  envStr("POSTGRES_SSLMODE", "require"),
	}
}

// Redis is the fast-store connection surface.
type Redis struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func LoadRedis() Redis {
	return Redis{
		Host:     envStr("REDIS_HOST", "localhost"),
		Port:     envStr("REDIS_PORT", "6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
