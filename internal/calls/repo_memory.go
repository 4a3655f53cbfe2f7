package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Store useful for tests.
// A single mutex stands in for the per-row locking of the Postgres repo;
// the serialization contract still holds, just coarser.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Call
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Call)}
}

func (r *MemoryRepo) UpsertByCallID(ctx context.Context, callID string, mutate func(c *Call, created bool) error) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.rows[callID]
	created := !ok
	if created {
		c = Call{CallID: callID, CreatedAt: time.Now().UTC()}
	}
	if err := mutate(&c, created); err != nil {
		return Call{}, err
	}
	c.UpdatedAt = time.Now().UTC()
	r.rows[callID] = c
	return c, nil
}

func (r *MemoryRepo) GetByCallID(ctx context.Context, callID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.collect(func(Call) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) FindActive(ctx context.Context) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(c Call) bool { return !c.Status.Terminal() }), nil
}

func (r *MemoryRepo) FindStuck(ctx context.Context, before time.Time) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(c Call) bool {
		return !c.Status.Terminal() && c.StartTime.Before(before)
	}), nil
}

func (r *MemoryRepo) collect(keep func(Call) bool) []Call {
	var out []Call
	for _, c := range r.rows {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
