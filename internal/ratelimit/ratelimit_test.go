package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/crowdsong/crowdsong/internal/ratelimit"
)

func newLimiter(clock *time.Time) *ratelimit.KeyedLimiter {
	l := ratelimit.New(ratelimit.Config{Rate: rate.Every(time.Second), Burst: 2, IdleTTL: time.Minute})
	l.SetClock(func() time.Time { return *clock })
	return l
}

func TestAllow_BurstThenRefill(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newLimiter(&clock)

	if !l.Allow("u1", "vote") || !l.Allow("u1", "vote") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow("u1", "vote") {
		t.Error("expected third action to be throttled")
	}
	if !l.Allow("u1", "submit") {
		t.Error("actions are limited independently")
	}
	if !l.Allow("u2", "vote") {
		t.Error("users are limited independently")
	}

	clock = clock.Add(time.Second)
	if !l.Allow("u1", "vote") {
		t.Error("expected a token after one second")
	}
}

func TestEvict_DropsIdleBuckets(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newLimiter(&clock)

	l.Allow("u1", "vote")
	clock = clock.Add(30 * time.Second)
	l.Allow("u2", "vote")

	clock = clock.Add(45 * time.Second)
	if removed := l.Evict(); removed != 1 {
		t.Errorf("expected 1 bucket evicted, got %d", removed)
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 bucket left, got %d", l.Len())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{Rate: 1, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, 10*time.Millisecond) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestUnlimited(t *testing.T) {
	var l ratelimit.Limiter = ratelimit.Unlimited{}
	for i := 0; i < 100; i++ {
		if !l.Allow("u", "vote") {
			t.Fatal("Unlimited refused an action")
		}
	}
}
