package candidates

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("candidates: not found")

// Store is the persistence contract for candidate snapshots.
//
// Snapshots are append-only except for ClearOutcome, which the scheduler uses
// to mark a candidate as dispatched; the next call's completion creates the
// authoritative follow-up snapshot.
type Store interface {
	Insert(ctx context.Context, c Candidate) error
	GetByID(ctx context.Context, id string) (Candidate, error)

	// List returns snapshots newest first.
	List(ctx context.Context, limit int) ([]Candidate, error)

	// FindRescheduled returns candidates due for a scheduler look:
	// outcome Rescheduled with a non-empty availability text.
	FindRescheduled(ctx context.Context) ([]Candidate, error)

	// ListUnsuccessful returns Rescheduled and Disconnected snapshots.
	ListUnsuccessful(ctx context.Context) ([]Candidate, error)

	// ListNotInterested returns Not Interested and Screen Rejected snapshots,
	// plus anyone who said they are not interested.
	ListNotInterested(ctx context.Context) ([]Candidate, error)

	// ClearOutcome blanks the call outcome after a re-dial dispatch so the
	// same availability slot is not fired twice.
	ClearOutcome(ctx context.Context, id string) error
}
