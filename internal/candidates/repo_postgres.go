package candidates

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists candidate snapshots in the candidates table.
// See migrations/0001_init.sql for the schema.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const candidateColumns = `
id, phone_number, name, email, current_company, current_role, desired_role,
domain, notice_period, current_location, relocation_willing, experience_years,
current_ctc, expected_ctc, communication_score, technical_score, overall_score,
interested, disconnection_reason, call_status, next_availability, last_call_id,
created_at, updated_at
`

func (r *PostgresRepo) Insert(ctx context.Context, c Candidate) error {
	const q = `
INSERT INTO candidates (` + candidateColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
`
	now := r.clock().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.PhoneNumber, c.Name, c.Email, c.CurrentCompany, c.CurrentRole,
		c.DesiredRole, c.Domain, c.NoticePeriod, c.CurrentLocation, c.RelocationOK,
		c.ExperienceYears, c.CurrentCTC, c.ExpectedCTC,
		c.CommunicationScore, c.TechnicalScore, c.OverallScore,
		c.Interested, c.DisconnectionReason, string(c.CallOutcome),
		c.NextAvailability, nullString(c.LastCallID), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Candidate, error) {
	const q = `SELECT ` + candidateColumns + ` FROM candidates WHERE id = $1`
	c, err := scanCandidate(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Candidate{}, ErrNotFound
		}
		return Candidate{}, err
	}
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + candidateColumns + ` FROM candidates ORDER BY created_at DESC LIMIT $1`
	return r.queryMany(ctx, q, limit)
}

func (r *PostgresRepo) FindRescheduled(ctx context.Context) ([]Candidate, error) {
	const q = `
SELECT ` + candidateColumns + `
FROM candidates
WHERE call_status = $1 AND next_availability <> ''
ORDER BY created_at ASC
`
	return r.queryMany(ctx, q, string(OutcomeRescheduled))
}

func (r *PostgresRepo) ListUnsuccessful(ctx context.Context) ([]Candidate, error) {
	const q = `
SELECT ` + candidateColumns + `
FROM candidates
WHERE call_status IN ($1, $2)
ORDER BY created_at DESC
`
	return r.queryMany(ctx, q, string(OutcomeRescheduled), string(OutcomeDisconnected))
}

func (r *PostgresRepo) ListNotInterested(ctx context.Context) ([]Candidate, error) {
	const q = `
SELECT ` + candidateColumns + `
FROM candidates
WHERE call_status IN ($1, $2) OR interested = 'no'
ORDER BY created_at DESC
`
	return r.queryMany(ctx, q, string(OutcomeNotInterested), string(OutcomeScreenReject))
}

func (r *PostgresRepo) ClearOutcome(ctx context.Context, id string) error {
	const q = `UPDATE candidates SET call_status = '', updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, r.clock().UTC())
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

func (r *PostgresRepo) queryMany(ctx context.Context, q string, args ...any) ([]Candidate, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
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

func scanCandidate(row rowScanner) (Candidate, error) {
	var c Candidate
	var outcome string
	var lastCallID sql.NullString
	err := row.Scan(
		&c.ID, &c.PhoneNumber, &c.Name, &c.Email, &c.CurrentCompany, &c.CurrentRole,
		&c.DesiredRole, &c.Domain, &c.NoticePeriod, &c.CurrentLocation, &c.RelocationOK,
		&c.ExperienceYears, &c.CurrentCTC, &c.ExpectedCTC,
		&c.CommunicationScore, &c.TechnicalScore, &c.OverallScore,
		&c.Interested, &c.DisconnectionReason, &outcome,
		&c.NextAvailability, &lastCallID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Candidate{}, err
	}
	c.CallOutcome = CallOutcome(outcome)
	c.LastCallID = lastCallID.String
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
