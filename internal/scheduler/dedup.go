package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard prevents two scheduling passes from dispatching the same candidate
// concurrently. Acquire must be atomic: of two due-checks racing on the same
// candidate id, at most one may win. The entry stays active until ReleaseAfter
// expires it: a short grace on failure so the next tick can retry, a longer
// one on success so a slow callback cannot trigger a double dial.
type Guard interface {
	// Acquire claims the candidate id. Returns false when an entry is active.
	Acquire(ctx context.Context, candidateID string) (bool, error)

	// ReleaseAfter schedules expiry of the claim after the grace period.
	ReleaseAfter(ctx context.Context, candidateID string, grace time.Duration) error
}

// maxHold bounds a claim whose ReleaseAfter never ran (process bug, crash of
// the dispatch goroutine). Leaked claims expire instead of blocking a
// candidate forever.
const maxHold = 15 * time.Minute

// MemoryGuard is the single-process default. Not shared across instances:
// running more than one scheduler process requires the Redis guard.
type MemoryGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time // candidateID -> expiry
	clock   func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{entries: make(map[string]time.Time), clock: time.Now}
}

// WithClock overrides the guard clock; tests only.
func (g *MemoryGuard) WithClock(clock func() time.Time) *MemoryGuard {
	g.clock = clock
	return g
}

func (g *MemoryGuard) Acquire(ctx context.Context, candidateID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	if exp, ok := g.entries[candidateID]; ok && now.Before(exp) {
		return false, nil
	}
	g.entries[candidateID] = now.Add(maxHold)
	return true, nil
}

func (g *MemoryGuard) ReleaseAfter(ctx context.Context, candidateID string, grace time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entries[candidateID]; ok {
		g.entries[candidateID] = g.clock().Add(grace)
	}
	return nil
}

// RedisGuard shares claims across scheduler instances via SET NX.
// Key: dedup:candidate:<id>, claimed with a maxHold TTL, then re-expired to
// the grace period once the dispatch attempt resolves.
type RedisGuard struct {
	rdb *redis.Client
}

func NewRedisGuard(rdb *redis.Client) *RedisGuard {
	return &RedisGuard{rdb: rdb}
}

func (g *RedisGuard) Acquire(ctx context.Context, candidateID string) (bool, error) {
	return g.rdb.SetNX(ctx, dedupKey(candidateID), "1", maxHold).Result()
}

func (g *RedisGuard) ReleaseAfter(ctx context.Context, candidateID string, grace time.Duration) error {
	return g.rdb.PExpire(ctx, dedupKey(candidateID), grace).Err()
}

func dedupKey(candidateID string) string {
	return "dedup:candidate:" + candidateID
}
