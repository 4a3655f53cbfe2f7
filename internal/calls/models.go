package calls

import "time"

// Call represents one telephony session tracked against the external voice
// engine. The engine assigns CallID; exactly one row exists per CallID and
// every write is an upsert keyed on it.
type Call struct {
	CallID      string `json:"call_id" db:"call_id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	Direction Direction  `json:"direction" db:"direction"`
	Status    CallStatus `json:"status" db:"status"`

	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`

	// DurationSeconds is derived: set exactly when Status is terminal,
	// floor(EndTime - StartTime) clamped to >= 0.
	DurationSeconds *int `json:"duration,omitempty" db:"duration"`

	TransferRequested bool   `json:"transfer_requested" db:"transfer_requested"`
	TransferNumber    string `json:"transfer_number,omitempty" db:"transfer_number"`

	RecordingRef  string `json:"recording_ref,omitempty" db:"recording_ref"`
	TranscriptRef string `json:"transcript_ref,omitempty" db:"transcript_ref"`

	// Summary is the conversation blob as reported; opaque to this service.
	Summary string `json:"summary,omitempty" db:"summary"`

	// CandidateID links the snapshot created when final data arrived.
	CandidateID string `json:"candidate_id,omitempty" db:"candidate_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusConnected CallStatus = "connected"
	CallStatusOngoing   CallStatus = "ongoing"
	CallStatusCompleted CallStatus = "completed"
	CallStatusMissed    CallStatus = "missed"
	CallStatusFailed    CallStatus = "failed"
)

// Terminal reports whether no further transition leaves this status.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusMissed, CallStatusFailed:
		return true
	default:
		return false
	}
}

// KnownStatuses lists the statuses the engine is expected to report. The
// machine still stores anything else verbatim; unknown statuses count as
// non-terminal until a terminal report or the reaper resolves them.
var KnownStatuses = []CallStatus{
	CallStatusInitiated,
	CallStatusRinging,
	CallStatusConnected,
	CallStatusOngoing,
	CallStatusCompleted,
	CallStatusMissed,
	CallStatusFailed,
}
