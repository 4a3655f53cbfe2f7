package calls

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

// Store is the persistence contract for call records.
//
// UpsertByCallID must serialize concurrent mutations of the same CallID while
// leaving different CallIDs free to proceed in parallel. mutate receives the
// current row (zero-valued with created=true when the id is new) and edits it
// in place; a mutate error aborts the write.
type Store interface {
	UpsertByCallID(ctx context.Context, callID string, mutate func(c *Call, created bool) error) (Call, error)
	GetByCallID(ctx context.Context, callID string) (Call, error)

	// List returns calls newest first.
	List(ctx context.Context, limit int) ([]Call, error)

	// FindActive returns all calls in a non-terminal status.
	FindActive(ctx context.Context) ([]Call, error)

	// FindStuck returns non-terminal calls that started before the cutoff.
	FindStuck(ctx context.Context, before time.Time) ([]Call, error)
}
