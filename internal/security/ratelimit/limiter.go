package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/yourorg/teamtask/internal/infrastructure/redis"
)

// Limiter caps request rates per identifier. By default it keeps sliding
// windows in memory; when a redis client is attached the counters move to a
// fixed window in redis so replicas share one budget.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	maxReqs int
	window  time.Duration
	redis   *redis.Client
	cleanup *time.Ticker
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	limiter := &Limiter{
		buckets: make(map[string]*bucket),
		maxReqs: maxRequests,
		window:  window,
		cleanup: time.NewTicker(5 * time.Minute),
	}
	go limiter.cleanupOldBuckets()
	return limiter
}

// WithRedis switches window accounting to redis INCR+EXPIRE counters.
func (l *Limiter) WithRedis(client *redis.Client) *Limiter {
	l.redis = client
	return l
}

// Window returns the limiter's configured window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

func (l *Limiter) Allow(ctx context.Context, id string) bool {
	if id == "" {
		return true
	}
	if l.redis != nil {
		return l.allowRedis(ctx, "rl:"+id, l.maxReqs, l.window)
	}
	return l.allowLocal(id, l.maxReqs, l.window)
}

// AllowStrict applies a tighter limit for sensitive endpoints, tracked under
// a separate key so it never competes with the default budget.
func (l *Limiter) AllowStrict(ctx context.Context, id string, maxReqs int, window time.Duration) bool {
	if id == "" {
		return true
	}
	key := "strict:" + id
	if l.redis != nil {
		return l.allowRedis(ctx, "rl:"+key, maxReqs, window)
	}
	return l.allowLocal(key, maxReqs, window)
}

func (l *Limiter) allowRedis(ctx context.Context, key string, maxReqs int, window time.Duration) bool {
	count, err := l.redis.IncrWithWindow(ctx, key, window)
	if err != nil {
		// Redis being down must not lock everyone out.
		return true
	}
	return count <= int64(maxReqs)
}

func (l *Limiter) allowLocal(id string, maxReqs int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[id]
	if !exists {
		b = &bucket{requests: []time.Time{}}
		l.buckets[id] = b
	}

	cutoff := now.Add(-window)
	var reqs []time.Time
	for _, t := range b.requests {
		if t.After(cutoff) {
			reqs = append(reqs, t)
		}
	}
	b.requests = reqs
	b.lastSeen = now

	if len(b.requests) >= maxReqs {
		return false
	}

	b.requests = append(b.requests, now)
	return true
}

func (l *Limiter) cleanupOldBuckets() {
	for range l.cleanup.C {
		l.mu.Lock()
		now := time.Now()
		staleThreshold := now.Add(-15 * time.Minute)
		for id, b := range l.buckets {
			if b.lastSeen.Before(staleThreshold) {
				delete(l.buckets, id)
			}
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) Stop() {
	l.cleanup.Stop()
}
