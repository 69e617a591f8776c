package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which event IDs were already handled so a
// redelivered event is processed at most once per TTL window.
type IdempotencyStore interface {
	// MarkProcessed claims an event ID for the given TTL. It reports true
	// for the first claim and false when the ID was already marked.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the event ID is currently marked.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

// IdempotencyConfig controls deduplication of event deliveries.
type IdempotencyConfig struct {
	// TTL bounds how long a processed event ID is remembered. Once it
	// expires the same ID would be processed again.
	TTL time.Duration

	// Enabled turns the dedup check off entirely when false.
	Enabled bool
}

// DefaultIdempotencyConfig remembers event IDs for a day.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
