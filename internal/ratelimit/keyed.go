// Package ratelimit provides per-key rate limiting on top of token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Reporter receives limiter events. May be nil.
type Reporter interface {
	RecordRateLimiterDrop(limiter string)
	SetRateLimiterKeys(limiter string, count int)
}

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter for metrics (e.g., "user", "llm")
	Name string

	// Token bucket settings
	Burst      int        // Maximum tokens (burst capacity)
	RefillRate rate.Limit // Tokens refilled per second

	// How often to drop limiters whose bucket is full again
	CleanupPeriod time.Duration

	Reporter Reporter
}

// PerHour converts an hourly budget to a refill rate.
func PerHour(n float64) rate.Limit {
	return rate.Limit(n / 3600)
}

// KeyedLimiter tracks rate limits per key (e.g., user ID).
// It creates a separate token bucket for each key and periodically
// forgets keys that have been idle long enough to refill completely.
type KeyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*rate.Limiter
	config  KeyedConfig
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewKeyedLimiter creates a per-key limiter and starts its cleanup loop.
// Call Stop when done.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}
	kl := &KeyedLimiter{
		entries: make(map[string]*rate.Limiter),
		config:  cfg,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Allow reports whether a request for key may proceed, consuming a token
// if so. An empty key is always allowed.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	if kl.limiter(key).AllowN(kl.now(), 1) {
		return true
	}
	if kl.config.Reporter != nil {
		kl.config.Reporter.RecordRateLimiterDrop(kl.config.Name)
	}
	return false
}

// Available returns the tokens currently left for key.
func (kl *KeyedLimiter) Available(key string) float64 {
	kl.mu.Lock()
	lim, ok := kl.entries[key]
	kl.mu.Unlock()
	if !ok {
		return float64(kl.config.Burst)
	}
	return lim.TokensAt(kl.now())
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}

func (kl *KeyedLimiter) limiter(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	lim, ok := kl.entries[key]
	if !ok {
		lim = rate.NewLimiter(kl.config.RefillRate, kl.config.Burst)
		kl.entries[key] = lim
	}
	return lim
}

// Cleanup drops keys whose bucket is full and returns the remaining count.
func (kl *KeyedLimiter) Cleanup() int {
	now := kl.now()
	kl.mu.Lock()
	for key, lim := range kl.entries {
		if lim.TokensAt(now) >= float64(kl.config.Burst) {
			delete(kl.entries, key)
		}
	}
	count := len(kl.entries)
	kl.mu.Unlock()

	if kl.config.Reporter != nil {
		kl.config.Reporter.SetRateLimiterKeys(kl.config.Name, count)
	}
	return count
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.Cleanup()
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() { close(kl.stopCh) })
}

// NewOutbound returns a shared limiter for calls to the LINE API.
func NewOutbound(perSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
