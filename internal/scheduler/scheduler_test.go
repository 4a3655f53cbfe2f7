package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"screening-platform/internal/candidates"
	"screening-platform/internal/notify"
)

type fakeDialer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDialer) PlaceCall(ctx context.Context, phoneNumber string) (DialResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return DialResult{}, d.err
	}
	d.calls = append(d.calls, phoneNumber)
	return DialResult{CallID: "CA-test"}, nil
}

func (d *fakeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

type schedFixture struct {
	sched  *Scheduler
	cand   *candidates.MemoryRepo
	guard  *MemoryGuard
	dialer *fakeDialer
	notes  *notify.MemoryRepo
	now    time.Time
}

func newSchedFixture(t *testing.T) *schedFixture {
	t.Helper()
	f := &schedFixture{
		cand:   candidates.NewMemoryRepo(),
		dialer: &fakeDialer{},
		notes:  notify.NewMemoryRepo(),
		now:    time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.guard = NewMemoryGuard().WithClock(clock)
	f.sched = New(Config{Tick: time.Minute}, f.cand, f.guard, f.dialer, f.notes, nil).WithClock(clock)
	return f
}

func (f *schedFixture) addRescheduled(t *testing.T, id, phone, availability string) {
	t.Helper()
	err := f.cand.Insert(context.Background(), candidates.Candidate{
		ID:               id,
		PhoneNumber:      phone,
		CallOutcome:      candidates.OutcomeRescheduled,
		NextAvailability: availability,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func (f *schedFixture) tickAndSettle(t *testing.T) {
	t.Helper()
	if err := f.sched.runTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	f.sched.dispatchWG.Wait()
}

func TestRunTick_DispatchesDueCandidate(t *testing.T) {
	f := newSchedFixture(t)
	// slot one second in the past: still inside the fire-once window
	f.addRescheduled(t, "c1", "+15550001", "2026-02-10 08:59:59")

	f.tickAndSettle(t)

	if got := f.dialer.dialed(); len(got) != 1 || got[0] != "+15550001" {
		t.Fatalf("expected one dial to +15550001, got %v", got)
	}
	c, _ := f.cand.GetByID(context.Background(), "c1")
	if c.CallOutcome != "" {
		t.Fatalf("outcome should be cleared after dispatch, got %q", c.CallOutcome)
	}
	if c.NextAvailability == "" {
		t.Fatalf("availability text must be preserved")
	}
}

func TestRunTick_SkipsNotYetDue(t *testing.T) {
	f := newSchedFixture(t)
	f.addRescheduled(t, "c1", "+15550001", "in 2 hours")

	f.tickAndSettle(t)

	if got := f.dialer.dialed(); len(got) != 0 {
		t.Fatalf("expected no dials, got %v", got)
	}
	c, _ := f.cand.GetByID(context.Background(), "c1")
	if c.CallOutcome != candidates.OutcomeRescheduled {
		t.Fatalf("candidate must stay rescheduled")
	}
}

func TestRunTick_SkipsUnresolvedText(t *testing.T) {
	f := newSchedFixture(t)
	f.addRescheduled(t, "c1", "+15550001", "whenever you like")

	f.tickAndSettle(t)

	if got := f.dialer.dialed(); len(got) != 0 {
		t.Fatalf("expected no dials, got %v", got)
	}
	// never silently dropped: still pending for a human
	c, _ := f.cand.GetByID(context.Background(), "c1")
	if c.CallOutcome != candidates.OutcomeRescheduled || c.NextAvailability != "whenever you like" {
		t.Fatalf("unresolved candidate must be left untouched: %+v", c)
	}
}

func TestRunTick_DedupAcrossOverlappingTicks(t *testing.T) {
	f := newSchedFixture(t)
	f.addRescheduled(t, "c1", "+15550001", "2026-02-10 09:00:30")

	// two scans inside the same due window; the dedup guard must allow only
	// one dispatch even though the first success also clears the outcome
	f.tickAndSettle(t)
	f.tickAndSettle(t)

	if got := f.dialer.dialed(); len(got) != 1 {
		t.Fatalf("expected exactly one dial, got %v", got)
	}
}

func TestRunTick_FailureKeepsCandidateAndRetriesAfterGrace(t *testing.T) {
	f := newSchedFixture(t)
	f.dialer.err = errors.New("engine down")
	f.addRescheduled(t, "c1", "+15550001", "2026-02-10 09:00:30")

	f.tickAndSettle(t)

	c, _ := f.cand.GetByID(context.Background(), "c1")
	if c.CallOutcome != candidates.OutcomeRescheduled {
		t.Fatalf("failed dispatch must leave candidate untouched, got %q", c.CallOutcome)
	}

	// within the failure grace the guard suppresses a retry
	f.now = f.now.Add(30 * time.Second)
	f.tickAndSettle(t)
	if len(f.dialer.dialed()) != 0 {
		t.Fatalf("expected no successful dials yet")
	}

	// after the failure grace the engine is back and the retry lands
	f.dialer.err = nil
	f.now = f.now.Add(45 * time.Second) // 75s after failure > 1m grace, slot still in window
	f.tickAndSettle(t)
	if got := f.dialer.dialed(); len(got) != 1 {
		t.Fatalf("expected retry dial after grace, got %v", got)
	}
}

func TestRunTick_EscalatesAfterMaxFailures(t *testing.T) {
	f := newSchedFixture(t)
	f.dialer.err = errors.New("engine down")
	f.addRescheduled(t, "c1", "+15550001", "in 0 minutes")

	// each tick jumps past the failure grace so every attempt goes through
	for i := 0; i < 3; i++ {
		f.tickAndSettle(t)
		f.now = f.now.Add(61 * time.Second)
	}

	var system int
	for _, n := range f.notes.All() {
		if n.Type == notify.TypeSystem {
			system++
			if n.CandidateID != "c1" || n.Priority != notify.PriorityHigh {
				t.Fatalf("unexpected escalation payload: %+v", n)
			}
		}
	}
	if system != 1 {
		t.Fatalf("expected exactly one escalation notification, got %d", system)
	}
}

func TestScheduleCall_RejectsPastAndBlankInput(t *testing.T) {
	f := newSchedFixture(t)

	if err := f.sched.ScheduleCall("c1", "+15550001", f.now.Add(-time.Minute)); !errors.Is(err, ErrPastTime) {
		t.Fatalf("expected ErrPastTime, got %v", err)
	}
	if err := f.sched.ScheduleCall("", "+15550001", f.now.Add(time.Minute)); err == nil {
		t.Fatalf("expected error for missing candidate id")
	}
	if err := f.sched.ScheduleCall("c1", "", f.now.Add(time.Minute)); err == nil {
		t.Fatalf("expected error for missing phone number")
	}
}

func TestStop_DisarmsPendingOneOffTimers(t *testing.T) {
	f := newSchedFixture(t)

	// Armed far in the future; Stop must disarm it so nothing fires against
	// torn-down dependencies after shutdown.
	if err := f.sched.ScheduleCall("cand-timer", "+15550100", f.now.Add(time.Hour)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	f.sched.mu.Lock()
	pending := len(f.sched.timers)
	f.sched.mu.Unlock()
	if pending != 1 {
		t.Fatalf("expected 1 tracked timer, got %d", pending)
	}

	f.sched.Stop()

	f.sched.mu.Lock()
	pending = len(f.sched.timers)
	f.sched.mu.Unlock()
	if pending != 0 {
		t.Fatalf("expected no tracked timers after Stop, got %d", pending)
	}

	// A timer that somehow fires anyway is gated: no dispatch after Stop.
	f.sched.dispatch(context.Background(), "cand-timer", "+15550100", false)
	f.sched.dispatchWG.Wait()
	if got := f.dialer.dialed(); len(got) != 0 {
		t.Fatalf("dispatched after Stop: %v", got)
	}

	// And new one-offs are refused.
	if err := f.sched.ScheduleCall("cand-timer", "+15550100", f.now.Add(time.Hour)); err == nil {
		t.Fatal("expected error scheduling after Stop")
	}
}
