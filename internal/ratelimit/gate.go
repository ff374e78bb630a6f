package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// WaitError rejects a request that arrived before the minimum interval passed.
type WaitError struct {
	Remaining time.Duration
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("please wait %d seconds before submitting another generation request", e.Seconds())
}

// Seconds is the remaining wait rounded up to whole seconds.
func (e *WaitError) Seconds() int {
	s := int(math.Ceil(e.Remaining.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// Gate admits at most one request per key per interval. A rejected request
// is not queued. Release hands back the slot of an admitted request that was
// never submitted, so the interval starts with the next admitted one.
type Gate interface {
	Allow(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

type MemoryGate struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryGate(interval time.Duration) *MemoryGate {
	return NewMemoryGateWithClock(interval, time.Now)
}

func NewMemoryGateWithClock(interval time.Duration, now func() time.Time) *MemoryGate {
	return &MemoryGate{
		interval: interval,
		now:      now,
		last:     make(map[string]time.Time),
	}
}

func (g *MemoryGate) Allow(_ context.Context, key string) error {
	if g.interval <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.last[key]; ok {
		if elapsed := now.Sub(last); elapsed < g.interval {
			return &WaitError{Remaining: g.interval - elapsed}
		}
	}
	g.last[key] = now
	g.prune(now)
	return nil
}

func (g *MemoryGate) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.last, key)
	return nil
}

// prune drops keys whose interval has passed. Caller holds mu.
func (g *MemoryGate) prune(now time.Time) {
	if len(g.last) < 1024 {
		return
	}
	for k, t := range g.last {
		if now.Sub(t) >= g.interval {
			delete(g.last, k)
		}
	}
}

// RedisGate shares the gate across replicas with SET NX PX.
type RedisGate struct {
	client   *redis.Client
	interval time.Duration
	prefix   string
}

func NewRedisGate(client *redis.Client, interval time.Duration) *RedisGate {
	return &RedisGate{
		client:   client,
		interval: interval,
		prefix:   "ratelimit:generation:",
	}
}

func (g *RedisGate) Allow(ctx context.Context, key string) error {
	if g.interval <= 0 {
		return nil
	}

	k := g.prefix + key
	ok, err := g.client.SetNX(ctx, k, time.Now().UnixMilli(), g.interval).Result()
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if ok {
		return nil
	}

	ttl, err := g.client.PTTL(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("failed to read rate limit ttl: %w", err)
	}
	if ttl <= 0 {
		ttl = g.interval
	}
	return &WaitError{Remaining: ttl}
}

func (g *RedisGate) Release(ctx context.Context, key string) error {
	if g.interval <= 0 {
		return nil
	}
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release rate limit: %w", err)
	}
	return nil
}
