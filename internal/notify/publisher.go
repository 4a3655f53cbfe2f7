package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher fans out change events to dashboard subscribers.
//
// Publishing is best-effort, at-most-once per state change: implementations
// must swallow delivery failures so the write path that produced the event
// never fails because nobody is listening.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any)
}

// RedisPublisher publishes events on Redis pub/sub channels.
// Channel name is "events:" + event.
type RedisPublisher struct {
	rdb *redis.Client
	log *slog.Logger

	timeout time.Duration
}

func NewRedisPublisher(rdb *redis.Client, log *slog.Logger) *RedisPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &RedisPublisher{rdb: rdb, log: log, timeout: 2 * time.Second}
}

func (p *RedisPublisher) Publish(ctx context.Context, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn("event marshal failed", "event", event, "err", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.rdb.Publish(pubCtx, "events:"+event, body).Err(); err != nil {
		p.log.Warn("event publish failed", "event", event, "err", err)
	}
}

// MemoryPublisher records events for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []RecordedEvent
}

type RecordedEvent struct {
	Event   string
	Payload any
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(ctx context.Context, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, RecordedEvent{Event: event, Payload: payload})
}

func (p *MemoryPublisher) Events() []RecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RecordedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// NopPublisher drops everything.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) {}
