package infrastructure

import (
	"sync"
	"time"
)

// RateLimiter spaces consecutive launches against the same host. Hosts
// are independent of each other; a wait for x.com never delays
// instagram.com. The zero interval disables limiting.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	lastSeen map[string]time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		lastSeen: make(map[string]time.Time),
	}
}

// Wait blocks until at least the configured interval has passed since the
// previous launch against the same domain, then stamps the new launch.
// The lock is not held while sleeping.
func (r *RateLimiter) Wait(domain string) {
	if r.interval <= 0 || domain == "" {
		return
	}

	r.mu.Lock()
	now := time.Now()
	remaining := r.interval - now.Sub(r.lastSeen[domain])
	if remaining > 0 {
		r.mu.Unlock()
		time.Sleep(remaining)
		r.mu.Lock()
	}
	r.lastSeen[domain] = time.Now()
	r.mu.Unlock()
}
