package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require clinicID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, clinicID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, clinicID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, clinicID string, key string) error

	// GetPatientContext retrieves a cached patient context.
	GetPatientContext(ctx context.Context, clinicID string, patientID string) (*PatientContext, error)

	// SetPatientContext caches an assembled patient context.
	SetPatientContext(ctx context.Context, clinicID string, patient *PatientContext, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for per-clinic request rate windows.
	IncrementCounter(ctx context.Context, clinicID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis

	// PatientContextTTL bounds how stale a cached context may be.
	PatientContextTTL time.Duration
}
