package notify

import "time"

// Notification is a derived event record surfaced on the dashboard.
// Rows are immutable except for the read flag.
type Notification struct {
	ID          string   `json:"id" db:"id"`
	Type        Type     `json:"type" db:"type"`
	Title       string   `json:"title" db:"title"`
	Message     string   `json:"message" db:"message"`
	CallID      string   `json:"call_id,omitempty" db:"call_id"`
	CandidateID string   `json:"candidate_id,omitempty" db:"candidate_id"`
	Read        bool     `json:"read" db:"read"`
	Priority    Priority `json:"priority" db:"priority"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Type string

const (
	TypeMissedCall    Type = "missed_call"
	TypeCallCompleted Type = "call_completed"
	TypeScreeningDone Type = "screening_done"
	TypeSystem        Type = "system"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Event channels published to dashboard subscribers.
const (
	EventCallStatus       = "call:status"
	EventCallCompleted    = "call:completed"
	EventCandidateUpdated = "candidate:updated"
	EventNotificationNew  = "notification:new"
)
