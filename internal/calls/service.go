package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"screening-platform/internal/candidates"
	"screening-platform/internal/notify"
)

var ErrInvalidReport = errors.New("calls: invalid report")

// Service applies call reports from the external voice engine, keeps the
// candidate snapshots in step, and emits notifications and dashboard events.
//
// Event publishing is best-effort and never fails the write path.
type Service struct {
	store         Store
	candidates    candidates.Store
	notifications notify.Store
	publisher     notify.Publisher

	log   *slog.Logger
	clock func() time.Time
}

func NewService(store Store, cand candidates.Store, notes notify.Store, pub notify.Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = notify.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:         store,
		candidates:    cand,
		notifications: notes,
		publisher:     pub,
		log:           log,
		clock:         time.Now,
	}
}

// WithClock overrides the service clock; tests only.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// StatusReport is one status event from the voice engine.
type StatusReport struct {
	CallID      string
	Status      CallStatus
	PhoneNumber string
	Direction   Direction
}

// ReportStatus applies a status event and returns the current call record.
// Reports are idempotent per CallID: duplicates update fields, never insert.
func (s *Service) ReportStatus(ctx context.Context, rep StatusReport) (Call, error) {
	if rep.CallID == "" {
		return Call{}, fmt.Errorf("%w: call_id required", ErrInvalidReport)
	}
	if rep.Status == "" {
		return Call{}, fmt.Errorf("%w: status required", ErrInvalidReport)
	}

	now := s.clock().UTC()
	var eff StatusEffect
	call, err := s.store.UpsertByCallID(ctx, rep.CallID, func(c *Call, created bool) error {
		eff = ApplyStatusEvent(c, created, rep.Status, rep.PhoneNumber, rep.Direction, now)
		return nil
	})
	if err != nil {
		return Call{}, err
	}

	if eff.RegressionRejected {
		s.log.Warn("status regression after terminal state ignored",
			"call_id", call.CallID, "stored", call.Status, "reported", rep.Status)
	}

	s.publisher.Publish(ctx, notify.EventCallStatus, call)

	if eff.BecameTerminal && call.Status == CallStatusMissed {
		s.createNotification(ctx, notify.Notification{
			Type:     notify.TypeMissedCall,
			Title:    "Missed Call",
			Message:  fmt.Sprintf("Candidate %s missed the call", call.PhoneNumber),
			CallID:   call.CallID,
			Priority: notify.PriorityHigh,
		})
	}
	return call, nil
}

// FinalReport carries the voice engine's full results for one call, including
// the screening snapshot extracted from the conversation. The snapshot fields
// are opaque here; only phone number, outcome and availability matter to the
// scheduling machinery.
type FinalReport struct {
	CallID string
	Data   FinalData

	Snapshot candidates.Candidate
}

// SaveFinalData forces the call to completed with payload-authoritative
// timing, creates the candidate snapshot, and links the two.
func (s *Service) SaveFinalData(ctx context.Context, rep FinalReport) (Call, candidates.Candidate, error) {
	if rep.CallID == "" {
		return Call{}, candidates.Candidate{}, fmt.Errorf("%w: call_id required", ErrInvalidReport)
	}

	now := s.clock().UTC()
	cand := rep.Snapshot
	cand.ID = uuid.NewString()
	if cand.PhoneNumber == "" {
		cand.PhoneNumber = rep.Data.PhoneNumber
	}
	cand.LastCallID = rep.CallID
	cand.CreatedAt = now
	cand.UpdatedAt = now

	call, err := s.store.UpsertByCallID(ctx, rep.CallID, func(c *Call, created bool) error {
		if created {
			s.log.Warn("final data for unseen call id", "call_id", rep.CallID)
		}
		ApplyFinalData(c, created, rep.Data, now)
		c.CandidateID = cand.ID
		return nil
	})
	if err != nil {
		return Call{}, candidates.Candidate{}, err
	}

	if err := s.candidates.Insert(ctx, cand); err != nil {
		return Call{}, candidates.Candidate{}, fmt.Errorf("candidate snapshot: %w", err)
	}

	s.publisher.Publish(ctx, notify.EventCallCompleted, map[string]any{
		"call":      call,
		"candidate": cand,
	})
	s.publisher.Publish(ctx, notify.EventCandidateUpdated, cand)

	who := cand.Name
	if who == "" {
		who = cand.PhoneNumber
	}
	s.createNotification(ctx, notify.Notification{
		Type:        notify.TypeScreeningDone,
		Title:       "Screening Completed",
		Message:     fmt.Sprintf("Screening completed for %s", who),
		CallID:      call.CallID,
		CandidateID: cand.ID,
		Priority:    notify.PriorityMedium,
	})
	return call, cand, nil
}

// FailStuck force-transitions every non-terminal call started before the
// cutoff to failed. Returns the number of calls swept.
func (s *Service) FailStuck(ctx context.Context, before time.Time) (int, error) {
	stuck, err := s.store.FindStuck(ctx, before)
	if err != nil {
		return 0, err
	}

	now := s.clock().UTC()
	swept := 0
	for _, sc := range stuck {
		var forced bool
		call, err := s.store.UpsertByCallID(ctx, sc.CallID, func(c *Call, created bool) error {
			// Re-checked under the row lock: a terminal report may have
			// landed between the scan and this write.
			forced = ForceFail(c, now)
			return nil
		})
		if err != nil {
			s.log.Error("stuck call sweep failed", "call_id", sc.CallID, "err", err)
			continue
		}
		if forced {
			swept++
			s.publisher.Publish(ctx, notify.EventCallStatus, call)
		}
	}
	return swept, nil
}

func (s *Service) GetCall(ctx context.Context, callID string) (Call, error) {
	return s.store.GetByCallID(ctx, callID)
}

func (s *Service) ListCalls(ctx context.Context, limit int) ([]Call, error) {
	return s.store.List(ctx, limit)
}

func (s *Service) ActiveCalls(ctx context.Context) ([]Call, error) {
	return s.store.FindActive(ctx)
}

func (s *Service) createNotification(ctx context.Context, n notify.Notification) {
	n.ID = uuid.NewString()
	n.CreatedAt = s.clock().UTC()
	if err := s.notifications.Insert(ctx, n); err != nil {
		s.log.Error("notification insert failed", "type", n.Type, "err", err)
		return
	}
	s.publisher.Publish(ctx, notify.EventNotificationNew, n)
}
