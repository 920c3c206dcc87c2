// Package session provides the durable key/value store scripts use to retain
// state across independent runs. Records are namespaced per session and
// survive process restarts.
package session

import (
	"context"
	"time"
)

// Store is the contract the context and tool bridge depends on. Callers
// always supply the session id bound to the current run; it is never taken
// from script-controlled input, which is what enforces cross-session
// isolation.
type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	List(ctx context.Context, sessionID string) ([]string, error)
	Delete(ctx context.Context, sessionID, key string) error
	Clear(ctx context.Context, sessionID string) error
	Close() error
}

// Options tunes retention and caching for the durable store.
type Options struct {
	// Retention is the horizon past which a session with no newer writes is
	// pruned entirely.
	Retention time.Duration
	// SweepInterval is how often the retention sweep runs.
	SweepInterval time.Duration
	CacheSize     int
	CacheTTL      time.Duration
}

// DefaultOptions returns the documented defaults: 24h retention swept
// hourly.
func DefaultOptions() Options {
	return Options{
		Retention:     24 * time.Hour,
		SweepInterval: time.Hour,
		CacheSize:     4096,
		CacheTTL:      time.Minute,
	}
}
