package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"screening-platform/pkg/utils"
)

// PostgresRepo persists calls in the calls table (call_id is the primary key).
//
// Per-id serialization uses SELECT ... FOR UPDATE inside a transaction: two
// reports for the same CallID queue on the row lock, reports for different
// CallIDs lock different rows and run concurrently. The find-or-create race
// (two first reports for the same id) resolves via the primary key plus
// WithTxRetry, so the loser retries and sees the winner's row.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const callColumns = `
call_id, phone_number, direction, status, start_time, end_time, duration,
transfer_requested, transfer_number, recording_ref, transcript_ref, summary,
candidate_id, created_at, updated_at
`

func (r *PostgresRepo) UpsertByCallID(ctx context.Context, callID string, mutate func(c *Call, created bool) error) (Call, error) {
	var out Call
	err := utils.WithTxRetry(ctx, r.db, nil, 3, func(ctx context.Context, tx *sql.Tx) error {
		now := r.clock().UTC()

		c, err := selectForUpdate(ctx, tx, callID)
		created := false
		if errors.Is(err, sql.ErrNoRows) {
			created = true
			c = Call{CallID: callID, CreatedAt: now}
			// Claim the id before mutating; a concurrent first report hits the
			// primary key here and the transaction retries as an update.
			const ins = `INSERT INTO calls (call_id, phone_number, direction, status, start_time, created_at, updated_at)
VALUES ($1, '', '', '', $2, $2, $2)`
			if _, err := tx.ExecContext(ctx, ins, callID, now); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := mutate(&c, created); err != nil {
			return err
		}
		c.UpdatedAt = now

		const upd = `
UPDATE calls SET
  phone_number = $2, direction = $3, status = $4, start_time = $5, end_time = $6,
  duration = $7, transfer_requested = $8, transfer_number = $9, recording_ref = $10,
  transcript_ref = $11, summary = $12, candidate_id = $13, updated_at = $14
WHERE call_id = $1
`
		_, err = tx.ExecContext(ctx, upd,
			c.CallID, c.PhoneNumber, string(c.Direction), string(c.Status),
			c.StartTime, c.EndTime, c.DurationSeconds,
			c.TransferRequested, c.TransferNumber, c.RecordingRef, c.TranscriptRef,
			c.Summary, nullString(c.CandidateID), c.UpdatedAt,
		)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return Call{}, err
	}
	return out, nil
}

func selectForUpdate(ctx context.Context, tx *sql.Tx, callID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1 FOR UPDATE`
	return scanCall(tx.QueryRowContext(ctx, q, callID))
}

func (r *PostgresRepo) GetByCallID(ctx context.Context, callID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + callColumns + ` FROM calls ORDER BY created_at DESC LIMIT $1`
	return r.queryMany(ctx, q, limit)
}

// Active/stuck filters exclude the terminal set rather than enumerating
// non-terminal statuses: the machine stores whatever status the engine
// reports, so an unrecognized status must still count as active and reapable.
func (r *PostgresRepo) FindActive(ctx context.Context) ([]Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE status NOT IN ($1, $2, $3)
ORDER BY created_at DESC
`
	return r.queryMany(ctx, q, terminalArgs()...)
}

func (r *PostgresRepo) FindStuck(ctx context.Context, before time.Time) ([]Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE status NOT IN ($1, $2, $3) AND start_time < $4
ORDER BY start_time ASC
`
	args := append(terminalArgs(), before)
	return r.queryMany(ctx, q, args...)
}

func terminalArgs() []any {
	return []any{
		string(CallStatusCompleted),
		string(CallStatusMissed),
		string(CallStatusFailed),
	}
}

func (r *PostgresRepo) queryMany(ctx context.Context, q string, args ...any) ([]Call, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var direction, status string
	var endTime sql.NullTime
	var duration sql.NullInt64
	var candidateID sql.NullString
	err := row.Scan(
		&c.CallID, &c.PhoneNumber, &direction, &status, &c.StartTime, &endTime,
		&duration, &c.TransferRequested, &c.TransferNumber, &c.RecordingRef,
		&c.TranscriptRef, &c.Summary, &candidateID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Call{}, err
	}
	c.Direction = Direction(direction)
	c.Status = CallStatus(status)
	if endTime.Valid {
		t := endTime.Time
		c.EndTime = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		c.DurationSeconds = &d
	}
	c.CandidateID = candidateID.String
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
