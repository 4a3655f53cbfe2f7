package candidates

import "time"

// Candidate is one screening snapshot. A fresh row is created for every
// completed call rather than mutating a prior snapshot, so the table doubles
// as screening history for a phone number.
type Candidate struct {
	ID          string `json:"id" db:"id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	Name            string `json:"name,omitempty" db:"name"`
	Email           string `json:"email,omitempty" db:"email"`
	CurrentCompany  string `json:"current_company,omitempty" db:"current_company"`
	CurrentRole     string `json:"current_role,omitempty" db:"current_role"`
	DesiredRole     string `json:"desired_role,omitempty" db:"desired_role"`
	Domain          string `json:"domain,omitempty" db:"domain"`
	NoticePeriod    string `json:"notice_period,omitempty" db:"notice_period"`
	CurrentLocation string `json:"current_location,omitempty" db:"current_location"`
	RelocationOK    string `json:"relocation_willing,omitempty" db:"relocation_willing"`
	ExperienceYears string `json:"experience_years,omitempty" db:"experience_years"`
	CurrentCTC      string `json:"current_ctc,omitempty" db:"current_ctc"`
	ExpectedCTC     string `json:"expected_ctc,omitempty" db:"expected_ctc"`

	CommunicationScore *float64 `json:"communication_score,omitempty" db:"communication_score"`
	TechnicalScore     *float64 `json:"technical_score,omitempty" db:"technical_score"`
	OverallScore       *float64 `json:"overall_score,omitempty" db:"overall_score"`

	Interested          string `json:"interested,omitempty" db:"interested"`
	DisconnectionReason string `json:"disconnection_reason,omitempty" db:"disconnection_reason"`

	// CallOutcome is how the screening call ended from HR's perspective.
	// Empty means the outcome is pending (e.g. cleared after re-dial dispatch).
	CallOutcome CallOutcome `json:"call_status,omitempty" db:"call_status"`

	// NextAvailability is the candidate's own words about when to call back.
	// It is only meaningful while CallOutcome is "Rescheduled"; the scheduler
	// resolves it into a timestamp and never mutates the text.
	NextAvailability string `json:"next_availability,omitempty" db:"next_availability"`

	LastCallID string `json:"last_call_id,omitempty" db:"last_call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CallOutcome values reported by the screening conversation.
type CallOutcome string

const (
	OutcomeCompleted     CallOutcome = "Completed"
	OutcomeRescheduled   CallOutcome = "Rescheduled"
	OutcomeNotInterested CallOutcome = "Not Interested"
	OutcomeScreenReject  CallOutcome = "Screen Rejected"
	OutcomeDisconnected  CallOutcome = "Disconnected"
)
