package rpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorTTL = 10 * time.Minute

// RateLimitConfig bounds authenticated calls per caller. A non-positive rate
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type callerLimiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
}

func newCallerLimiter(cfg RateLimitConfig) *callerLimiter {
	return &callerLimiter{
		cfg:      cfg,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
	}
}

func (l *callerLimiter) allow(id string) bool {
	if l == nil || l.cfg.RequestsPerSecond <= 0 {
		return true
	}
	now := l.clockNow()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.visitors {
		if now.Sub(entry.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
	entry, ok := l.visitors[id]
	if !ok {
		burst := l.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), burst)}
		l.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}
