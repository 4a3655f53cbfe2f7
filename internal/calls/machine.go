package calls

import "time"

// The state machine is pure: it mutates a Call in place given an incoming
// event and reports side effects for the caller to act on. Persistence and
// notification happen outside, inside the store's per-id upsert.
//
// States: initiated -> ringing -> connected/ongoing -> {completed|missed|failed}.
// The machine is permissive about unknown and out-of-order statuses because
// the reporting system (the external voice engine) is trusted, with one
// exception: a terminal status is sticky. Reports arriving after a terminal
// transition update non-status fields only and never re-open EndTime or
// DurationSeconds.

// StatusEffect describes what ApplyStatusEvent did.
type StatusEffect struct {
	// Created is true when this was the first report for the CallID.
	Created bool

	// BecameTerminal is true exactly once per call, on the transition into a
	// terminal status. Notification emission is guarded by it so duplicate
	// terminal reports do not re-notify.
	BecameTerminal bool

	// RegressionRejected is true when a non-terminal status arrived after the
	// call was already terminal. The stored status is left untouched.
	RegressionRejected bool
}

// ApplyStatusEvent applies one status report to c.
// created tells the machine whether the store had no prior row for this id.
func ApplyStatusEvent(c *Call, created bool, incoming CallStatus, phoneNumber string, direction Direction, now time.Time) StatusEffect {
	eff := StatusEffect{Created: created}

	if created {
		c.Status = incoming
		c.StartTime = now
		if direction == "" {
			direction = DirectionOutbound
		}
		c.Direction = direction
	} else {
		if c.Status.Terminal() && c.Status != incoming {
			eff.RegressionRejected = true
		} else {
			c.Status = incoming
		}
	}

	if phoneNumber != "" {
		c.PhoneNumber = phoneNumber
	}

	if !eff.RegressionRejected && incoming.Terminal() && c.EndTime == nil {
		end := now
		c.EndTime = &end
		c.DurationSeconds = durationSince(c.StartTime, end)
		eff.BecameTerminal = true
	}
	return eff
}

// FinalData is the full result payload reported once per call by the external
// engine. It is authoritative over any earlier status report.
type FinalData struct {
	PhoneNumber       string
	StartTime         time.Time
	EndTime           time.Time
	DurationSeconds   int
	TransferRequested bool
	TransferNumber    string
	RecordingRef      string
	TranscriptRef     string
	Summary           string
}

// ApplyFinalData forces the call to completed and overwrites timing and
// artifact fields from the payload.
func ApplyFinalData(c *Call, created bool, fd FinalData, now time.Time) {
	c.Status = CallStatusCompleted
	if created {
		c.Direction = DirectionOutbound
	}
	if fd.PhoneNumber != "" {
		c.PhoneNumber = fd.PhoneNumber
	}

	start := fd.StartTime
	if start.IsZero() {
		start = c.StartTime
	}
	if start.IsZero() {
		start = now
	}
	end := fd.EndTime
	if end.IsZero() {
		end = now
	}
	c.StartTime = start
	c.EndTime = &end

	if fd.DurationSeconds > 0 {
		d := fd.DurationSeconds
		c.DurationSeconds = &d
	} else {
		c.DurationSeconds = durationSince(start, end)
	}

	c.TransferRequested = fd.TransferRequested
	c.TransferNumber = fd.TransferNumber
	if fd.RecordingRef != "" {
		c.RecordingRef = fd.RecordingRef
	}
	if fd.TranscriptRef != "" {
		c.TranscriptRef = fd.TranscriptRef
	}
	if fd.Summary != "" {
		c.Summary = fd.Summary
	}
}

// ForceFail transitions a stuck non-terminal call to failed.
// Terminal calls are left untouched; the return value reports whether the
// transition happened.
func ForceFail(c *Call, now time.Time) bool {
	if c.Status.Terminal() {
		return false
	}
	c.Status = CallStatusFailed
	end := now
	c.EndTime = &end
	c.DurationSeconds = durationSince(c.StartTime, end)
	return true
}

// durationSince floors to whole seconds and clamps negatives (clock skew) to 0.
func durationSince(start, end time.Time) *int {
	d := int(end.Sub(start) / time.Second)
	if d < 0 {
		d = 0
	}
	return &d
}
