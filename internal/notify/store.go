package notify

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("notify: not found")

// Store is the persistence contract for notifications.
// Append-only: MarkRead flips the read flag and nothing else.
type Store interface {
	Insert(ctx context.Context, n Notification) error
	List(ctx context.Context, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// PostgresRepo persists notifications in the notifications table.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) Insert(ctx context.Context, n Notification) error {
	const q = `
INSERT INTO notifications (id, type, title, message, call_id, candidate_id, read, priority, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.clock().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		n.ID, string(n.Type), n.Title, n.Message,
		nullString(n.CallID), nullString(n.CandidateID),
		n.Read, string(n.Priority), n.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, type, title, message, call_id, candidate_id, read, priority, created_at
FROM notifications
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var typ, priority string
		var callID, candidateID sql.NullString
		if err := rows.Scan(&n.ID, &typ, &n.Title, &n.Message, &callID, &candidateID, &n.Read, &priority, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = Type(typ)
		n.Priority = Priority(priority)
		n.CallID = callID.String
		n.CandidateID = candidateID.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkRead(ctx context.Context, id string) error {
	const q = `UPDATE notifications SET read = TRUE WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
