package candidates

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Store useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Candidate
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Candidate)}
}

func (r *MemoryRepo) Insert(ctx context.Context, c Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	r.rows[c.ID] = c
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return Candidate{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.collect(func(Candidate) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) FindRescheduled(ctx context.Context) ([]Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(c Candidate) bool {
		return c.CallOutcome == OutcomeRescheduled && c.NextAvailability != ""
	}), nil
}

func (r *MemoryRepo) ListUnsuccessful(ctx context.Context) ([]Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(c Candidate) bool {
		return c.CallOutcome == OutcomeRescheduled || c.CallOutcome == OutcomeDisconnected
	}), nil
}

func (r *MemoryRepo) ListNotInterested(ctx context.Context) ([]Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(c Candidate) bool {
		return c.CallOutcome == OutcomeNotInterested || c.CallOutcome == OutcomeScreenReject || c.Interested == "no"
	}), nil
}

func (r *MemoryRepo) ClearOutcome(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	c.CallOutcome = ""
	c.UpdatedAt = time.Now().UTC()
	r.rows[id] = c
	return nil
}

func (r *MemoryRepo) collect(keep func(Candidate) bool) []Candidate {
	var out []Candidate
	for _, c := range r.rows {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
