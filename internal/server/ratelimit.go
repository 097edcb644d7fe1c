package server

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig bounds request volume. The global bucket protects the whole
// server; SignatureLimit caps how many signatures a single client IP may
// request per window, since each signature authorizes a storage upload.
type RateLimitConfig struct {
	GlobalRPS       float64
	GlobalBurst     int
	SignatureLimit  int
	SignatureWindow time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisTimeout    time.Duration
}

type rateLimiter struct {
	global          *tokenBucket
	signatureLimit  int
	signatureWindow time.Duration
	signatureMu     sync.Mutex
	signatureIPs    map[string]*ipLimiter
	store           counterStore
}

type ipLimiter struct {
	bucket   *tokenBucket
	lastSeen time.Time
}

type counterStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		signatureLimit:  cfg.SignatureLimit,
		signatureWindow: cfg.SignatureWindow,
		signatureIPs:    make(map[string]*ipLimiter),
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS)
			if burst < 1 {
				burst = 1
			}
		}
		rl.global = newTokenBucket(cfg.GlobalRPS, burst)
	}
	if rl.signatureWindow <= 0 {
		rl.signatureWindow = time.Minute
	}
	if cfg.RedisAddr != "" && rl.signatureLimit > 0 {
		timeout := cfg.RedisTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		rl.store = newRedisCounterStore(cfg.RedisAddr, cfg.RedisPassword, timeout)
	}
	return rl
}

func (r *rateLimiter) AllowRequest() bool {
	if r == nil || r.global == nil {
		return true
	}
	return r.global.Allow()
}

func (r *rateLimiter) AllowSignature(ctx context.Context, key string) (bool, time.Duration, error) {
	if r == nil || r.signatureLimit <= 0 {
		return true, 0, nil
	}
	if r.store != nil {
		return r.store.Allow(ctx, fmt.Sprintf("clipflow:signature-rate:%s", key), r.signatureLimit, r.signatureWindow)
	}
	if key == "" {
		key = "unknown"
	}
	r.signatureMu.Lock()
	limiter, exists := r.signatureIPs[key]
	if !exists {
		rate := float64(r.signatureLimit) / r.signatureWindow.Seconds()
		if rate <= 0 {
			rate = 1 / r.signatureWindow.Seconds()
		}
		limiter = &ipLimiter{bucket: newTokenBucket(rate, r.signatureLimit)}
		r.signatureIPs[key] = limiter
	}
	limiter.lastSeen = time.Now()
	r.cleanupLocked()
	r.signatureMu.Unlock()

	if limiter.bucket.Allow() {
		return true, 0, nil
	}
	return false, time.Second, nil
}

func (r *rateLimiter) cleanupLocked() {
	if len(r.signatureIPs) == 0 {
		return
	}
	cutoff := time.Now().Add(-2 * r.signatureWindow)
	for key, limiter := range r.signatureIPs {
		if limiter.lastSeen.Before(cutoff) {
			delete(r.signatureIPs, key)
		}
	}
}

type tokenBucket struct {
	mu        sync.Mutex
	rate      float64
	capacity  float64
	tokens    float64
	lastCheck time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	now := time.Now()
	return &tokenBucket{
		rate:      rate,
		capacity:  float64(burst),
		tokens:    float64(burst),
		lastCheck: now,
	}
}

func (tb *tokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(tb.lastCheck).Seconds()
	tb.lastCheck = now
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens -= 1
	return true
}
