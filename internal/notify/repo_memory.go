package notify

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Store useful for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows []Notification
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.rows = append(r.rows, n)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, 0, len(r.rows))
	// newest first
	for i := len(r.rows) - 1; i >= 0; i-- {
		out = append(out, r.rows[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepo) MarkRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

// All returns a copy of every stored notification, oldest first.
func (r *MemoryRepo) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.rows))
	copy(out, r.rows)
	return out
}
