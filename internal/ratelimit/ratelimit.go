// Package ratelimit throttles participant actions with one token bucket per
// (user, action) key. Idle buckets are evicted so the table stays bounded.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether an action may proceed
type Limiter interface {
	Allow(userID, action string) bool
}

// Config controls bucket size and eviction
type Config struct {
	Rate    rate.Limit    // sustained actions per second
	Burst   int           // actions allowed at once
	IdleTTL time.Duration // buckets unused for this long are dropped
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter is a Limiter holding one bucket per key
type KeyedLimiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*entry
	now     func() time.Time
}

// New creates a KeyedLimiter
func New(cfg Config) *KeyedLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		cfg:     cfg,
		buckets: make(map[string]*entry),
		now:     time.Now,
	}
}

// SetClock replaces the time source (for tests)
func (l *KeyedLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow consumes one token for (userID, action) if available
func (l *KeyedLimiter) Allow(userID, action string) bool {
	key := userID + "|" + action

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.buckets[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)}
		l.buckets[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Evict drops buckets idle for longer than IdleTTL and returns how many were removed
func (l *KeyedLimiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleTTL)
	removed := 0
	for key, e := range l.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run evicts idle buckets every interval until ctx is done
func (l *KeyedLimiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = l.cfg.IdleTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Evict()
		}
	}
}

// Unlimited never refuses
type Unlimited struct{}

// Allow always returns true
func (Unlimited) Allow(string, string) bool { return true }
