package backend

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound calls per backend name: each backend
// gets its own configured RPS/burst so a slow or throttling backend
// never starves dispatch to the others.
type RateLimiter interface {
	Allow(backend string) bool
	Reserve(backend string) (ok bool, delay time.Duration)
}

// TokenBucketLimiter implements RateLimiter with one golang.org/x/time/rate
// limiter per backend, lazily configured from the per-backend rate/burst
// supplied at registration.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	defaults map[string]rateSpec
}

type rateSpec struct {
	rps   float64
	burst int
}

// NewTokenBucketLimiter builds an empty limiter; call Configure per
// backend before first use, or it falls back to a conservative default
// of 5 rps / burst 10.
func NewTokenBucketLimiter() *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiters: make(map[string]*rate.Limiter),
		defaults: make(map[string]rateSpec),
	}
}

// Configure sets the rate/burst for a backend, applied the next time
// its limiter is lazily created.
func (l *TokenBucketLimiter) Configure(backendName string, rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defaults[backendName] = rateSpec{rps: rps, burst: burst}
	delete(l.limiters, backendName) // re-create with new spec on next use
}

func (l *TokenBucketLimiter) get(backendName string) *rate.Limiter {
	if lim, ok := l.limiters[backendName]; ok {
		return lim
	}
	spec, ok := l.defaults[backendName]
	if !ok {
		spec = rateSpec{rps: 5, burst: 10}
	}
	lim := rate.NewLimiter(rate.Limit(spec.rps), spec.burst)
	l.limiters[backendName] = lim
	return lim
}

// Allow reports whether a call against backendName may proceed now.
func (l *TokenBucketLimiter) Allow(backendName string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(backendName).Allow()
}

// Reserve checks permission without consuming a token on denial,
// returning the delay the caller would need to wait.
func (l *TokenBucketLimiter) Reserve(backendName string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.get(backendName).Reserve()
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}
