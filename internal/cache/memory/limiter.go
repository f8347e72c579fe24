package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// Buckets idle for longer than their window are dropped.
type RateLimiter struct {
	mu      sync.Mutex
	buckets *cache.Cache
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: cache.New(10*time.Minute, 5*time.Minute)}
}

// Allow reports whether one more event for key fits: limit events per
// window, bursting up to limit.
func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}
	bucketKey := fmt.Sprintf("%s|%d|%d", key, limit, window)

	l.mu.Lock()
	var lim *rate.Limiter
	if v, ok := l.buckets.Get(bucketKey); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
	}
	l.buckets.Set(bucketKey, lim, window+time.Minute)
	l.mu.Unlock()

	return lim.Allow(), nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
