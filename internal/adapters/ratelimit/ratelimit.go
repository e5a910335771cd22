// Package ratelimit provides a process-local fixed-window request limiter.
// Its state is advisory and is lost on restart.
package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Limiter decides whether a client may make another request.
type Limiter interface {
	// Allow counts one request for key. When the window is exhausted it
	// returns false and the time until the window resets.
	Allow(key string) (bool, time.Duration)
}

// FixedWindow allows limit requests per key per window. A window starts with
// the first request of a key and expires window later.
type FixedWindow struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	cache *gocache.Cache
}

var _ Limiter = (*FixedWindow)(nil)

// New creates a FixedWindow. Expired windows are swept every window.
func New(limit int, window time.Duration) *FixedWindow {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindow{
		limit:  limit,
		window: window,
		cache:  gocache.New(window, window),
	}
}

// Allow implements Limiter.
func (f *FixedWindow) Allow(key string) (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, expires, found := f.cache.GetWithExpiration(key)
	if !found {
		f.cache.Set(key, 1, f.window)
		return true, 0
	}
	remaining := time.Until(expires)
	if remaining <= 0 {
		f.cache.Set(key, 1, f.window)
		return true, 0
	}
	n, _ := v.(int)
	if n >= f.limit {
		return false, remaining
	}
	f.cache.Set(key, n+1, remaining)
	return true, 0
}

// Count returns how many requests key has made in its current window.
func (f *FixedWindow) Count(key string) int {
	v, found := f.cache.Get(key)
	if !found {
		return 0
	}
	n, _ := v.(int)
	return n
}

// Reset forgets every window.
func (f *FixedWindow) Reset() { f.cache.Flush() }

// Close releases the limiter state.
func (f *FixedWindow) Close() error {
	f.cache.Flush()
	return nil
}

// Unlimited allows every request.
type Unlimited struct{}

// Allow implements Limiter.
func (Unlimited) Allow(string) (bool, time.Duration) { return true, 0 }
