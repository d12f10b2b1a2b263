package middleware

import (
	"sync"
	"time"
)

// AuthAttempt tracks failed admin-auth attempts from an IP
type AuthAttempt struct {
	Count    int
	FirstAt  time.Time
	LockedAt time.Time
	IsLocked bool
}

// RateLimiter locks out IPs that repeatedly fail admin authentication
type RateLimiter struct {
	mu           sync.RWMutex
	attempts     map[string]*AuthAttempt
	maxAttempts  int
	windowPeriod time.Duration
	lockDuration time.Duration
}

// NewRateLimiter creates a new rate limiter
// maxAttempts: maximum failed attempts allowed within the window
// windowPeriod: time window for counting attempts
// lockDuration: how long to lock the IP after max attempts exceeded
func NewRateLimiter(maxAttempts int, windowPeriod, lockDuration time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts:     make(map[string]*AuthAttempt),
		maxAttempts:  maxAttempts,
		windowPeriod: windowPeriod,
		lockDuration: lockDuration,
	}
	go rl.startCleanup()
	return rl
}

// IsLocked reports whether the IP is currently locked out
func (rl *RateLimiter) IsLocked(ip string) bool {
	rl.mu.RLock()
	attempt, exists := rl.attempts[ip]
	rl.mu.RUnlock()

	if !exists || !attempt.IsLocked {
		return false
	}
	if time.Since(attempt.LockedAt) >= rl.lockDuration {
		rl.Reset(ip)
		return false
	}
	return true
}

// RecordFailure counts a failed attempt, locking the IP when the limit is hit
func (rl *RateLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	attempt, exists := rl.attempts[ip]
	if !exists || now.Sub(attempt.FirstAt) > rl.windowPeriod {
		rl.attempts[ip] = &AuthAttempt{Count: 1, FirstAt: now}
		return
	}

	attempt.Count++
	if attempt.Count >= rl.maxAttempts {
		attempt.IsLocked = true
		attempt.LockedAt = now
	}
}

// Reset clears the attempt record for an IP
func (rl *RateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// startCleanup periodically removes expired entries
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.cleanup()
	}
}

// cleanup removes entries whose window or lock has expired
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, attempt := range rl.attempts {
		if attempt.IsLocked {
			if now.Sub(attempt.LockedAt) >= rl.lockDuration {
				delete(rl.attempts, ip)
			}
			continue
		}
		if now.Sub(attempt.FirstAt) > rl.windowPeriod {
			delete(rl.attempts, ip)
		}
	}
}
