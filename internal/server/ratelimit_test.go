package server

import (
	"context"
	"testing"
	"time"
)

func TestAllowRequestUnlimitedByDefault(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		if !rl.AllowRequest() {
			t.Fatal("no global limit configured, every request must pass")
		}
	}
}

func TestAllowRequestEnforcesBurst(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{GlobalRPS: 1, GlobalBurst: 2})
	if !rl.AllowRequest() || !rl.AllowRequest() {
		t.Fatal("burst capacity must admit the first two requests")
	}
	if rl.AllowRequest() {
		t.Fatal("third immediate request must be rejected")
	}
}

func TestAllowSignaturePerIP(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{SignatureLimit: 2, SignatureWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := rl.AllowSignature(ctx, "10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("request %d: allowed=%v err=%v", i, allowed, err)
		}
	}
	allowed, retryAfter, err := rl.AllowSignature(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("AllowSignature: %v", err)
	}
	if allowed {
		t.Fatal("third signature request from the same IP must be rejected")
	}
	if retryAfter <= 0 {
		t.Fatal("rejection must carry a retry hint")
	}

	// A different client is unaffected.
	if allowed, _, _ := rl.AllowSignature(ctx, "10.0.0.2"); !allowed {
		t.Fatal("an unrelated IP must not share the limit")
	}
}

func TestAllowSignatureDisabledWithoutLimit(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 50; i++ {
		if allowed, _, err := rl.AllowSignature(context.Background(), "10.0.0.1"); err != nil || !allowed {
			t.Fatalf("request %d: allowed=%v err=%v", i, allowed, err)
		}
	}
}

type fixedCounterStore struct {
	allowed    bool
	retryAfter time.Duration
	keys       []string
}

func (s *fixedCounterStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.retryAfter, nil
}

func TestAllowSignaturePrefersSharedStore(t *testing.T) {
	store := &fixedCounterStore{allowed: false, retryAfter: 30 * time.Second}
	rl := newRateLimiter(RateLimitConfig{SignatureLimit: 5, SignatureWindow: time.Minute})
	rl.store = store

	allowed, retryAfter, err := rl.AllowSignature(context.Background(), "10.0.0.9")
	if err != nil {
		t.Fatalf("AllowSignature: %v", err)
	}
	if allowed || retryAfter != 30*time.Second {
		t.Fatalf("expected the shared store's verdict, got allowed=%v retryAfter=%s", allowed, retryAfter)
	}
	if len(store.keys) != 1 || store.keys[0] != "clipflow:signature-rate:10.0.0.9" {
		t.Fatalf("unexpected store keys %v", store.keys)
	}
}
