package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type reporter struct {
	mu    sync.Mutex
	drops map[string]int
	keys  map[string]int
}

func newReporter() *reporter {
	return &reporter{drops: map[string]int{}, keys: map[string]int{}}
}

func (r *reporter) RecordRateLimiterDrop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drops[name]++
}

func (r *reporter) SetRateLimiterKeys(name string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[name] = count
}

func newTestLimiter(t *testing.T, cfg KeyedConfig) (*KeyedLimiter, *time.Time) {
	t.Helper()
	if cfg.CleanupPeriod == 0 {
		cfg.CleanupPeriod = time.Hour
	}
	kl := NewKeyedLimiter(cfg)
	t.Cleanup(kl.Stop)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	kl.now = func() time.Time { return now }
	return kl, &now
}

func TestKeyedLimiter_Basic(t *testing.T) {
	t.Parallel()
	rep := newReporter()
	kl, _ := newTestLimiter(t, KeyedConfig{Name: "user", Burst: 1, RefillRate: 10, Reporter: rep})

	if !kl.Allow("user1") {
		t.Error("user1 first request rejected")
	}
	if kl.Allow("user1") {
		t.Error("user1 second request allowed, want limited")
	}
	if !kl.Allow("user2") {
		t.Error("user2 first request rejected")
	}
	assert.Equal(t, 1, rep.drops["user"])
}

func TestKeyedLimiter_EmptyKey(t *testing.T) {
	t.Parallel()
	kl, _ := newTestLimiter(t, KeyedConfig{Name: "user", Burst: 1, RefillRate: 0.001})
	for range 5 {
		assert.True(t, kl.Allow(""))
	}
	assert.Zero(t, kl.ActiveCount())
}

func TestKeyedLimiter_Refill(t *testing.T) {
	t.Parallel()
	kl, now := newTestLimiter(t, KeyedConfig{Name: "llm", Burst: 2, RefillRate: PerHour(3600)})

	assert.True(t, kl.Allow("u"))
	assert.True(t, kl.Allow("u"))
	assert.False(t, kl.Allow("u"))

	*now = now.Add(time.Second)
	assert.True(t, kl.Allow("u"))
	assert.InDelta(t, 0, kl.Available("u"), 0.001)
	assert.InDelta(t, 2, kl.Available("unknown"), 0.001)
}

func TestKeyedLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	rep := newReporter()
	kl, now := newTestLimiter(t, KeyedConfig{Name: "user", Burst: 10, RefillRate: 1, Reporter: rep})

	kl.Allow("idle")
	for range 10 {
		kl.Allow("busy")
	}
	*now = now.Add(2 * time.Second)

	assert.Equal(t, 1, kl.Cleanup(), "idle key refilled and should be dropped")
	assert.Equal(t, 1, rep.keys["user"])

	*now = now.Add(time.Minute)
	assert.Zero(t, kl.Cleanup())
}

func TestKeyedLimiter_Concurrent(t *testing.T) {
	t.Parallel()
	kl, _ := newTestLimiter(t, KeyedConfig{Name: "user", Burst: 50, RefillRate: 0.001})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := range 100 {
		wg.Go(func() {
			if kl.Allow(fmt.Sprintf("u%d", i%2)) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
	assert.Equal(t, 2, kl.ActiveCount())
}

func TestKeyedLimiter_StopTwice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	kl := NewKeyedLimiter(KeyedConfig{Name: "user", Burst: 1, RefillRate: 1, CleanupPeriod: time.Millisecond})
	kl.Stop()
	kl.Stop()
}
