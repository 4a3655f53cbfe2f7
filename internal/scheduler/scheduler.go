package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"screening-platform/internal/candidates"
	"screening-platform/internal/notify"
	"screening-platform/internal/timeexpr"
)

// Dialer asks the external voice engine to place an outbound call.
type Dialer interface {
	PlaceCall(ctx context.Context, phoneNumber string) (DialResult, error)
}

// DialResult is the engine's acknowledgement of a dispatch.
type DialResult struct {
	CallID string
}

var ErrPastTime = errors.New("scheduler: scheduled time is in the past")

// Config tunes the rescheduling loop.
type Config struct {
	// Tick is both the scan interval and the fire-once window half-width:
	// a candidate fires when |resolved-now| <= Tick, so a slot is hit by the
	// nearest tick whether it lands just before or just after the wakeup.
	Tick time.Duration

	// SuccessGrace / FailureGrace control dedup entry lifetime after a
	// dispatch attempt. Failure is shorter to let the next tick retry.
	SuccessGrace time.Duration
	FailureGrace time.Duration

	// DispatchTimeout bounds the outbound HTTP call to the voice engine.
	DispatchTimeout time.Duration

	// MaxDispatchFailures caps consecutive failures per candidate before an
	// escalation notification is raised. The tick interval still rate-limits
	// attempts; this makes the "retry forever" behavior visible instead.
	MaxDispatchFailures int
}

func (c Config) withDefaults() Config {
	out := c
	if out.Tick <= 0 {
		out.Tick = time.Minute
	}
	if out.SuccessGrace <= 0 {
		out.SuccessGrace = 5 * time.Minute
	}
	if out.FailureGrace <= 0 {
		out.FailureGrace = time.Minute
	}
	if out.DispatchTimeout <= 0 {
		out.DispatchTimeout = 15 * time.Second
	}
	if out.MaxDispatchFailures <= 0 {
		out.MaxDispatchFailures = 3
	}
	return out
}

// Scheduler periodically scans rescheduled candidates, resolves their
// availability text, and dispatches due re-dials through the dedup guard.
//
// One tick runs at a time: a new tick cannot start while the previous tick's
// scan is still running. Dispatch HTTP calls run concurrently within a tick
// and do not gate the next tick; only the guard bookkeeping does.
type Scheduler struct {
	cfg Config

	candidates    candidates.Store
	guard         Guard
	dialer        Dialer
	resolver      *timeexpr.Resolver
	notifications notify.Store

	log   *slog.Logger
	clock func() time.Time

	mu       sync.Mutex
	failures map[string]int // candidateID -> consecutive dispatch failures
	timers   map[*time.Timer]struct{}
	stopped  bool

	cancel     context.CancelFunc
	loopWG     sync.WaitGroup
	dispatchWG sync.WaitGroup
}

func New(cfg Config, cand candidates.Store, guard Guard, dialer Dialer, notes notify.Store, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:           cfg.withDefaults(),
		candidates:    cand,
		guard:         guard,
		dialer:        dialer,
		resolver:      timeexpr.NewResolver(),
		notifications: notes,
		log:           log,
		clock:         time.Now,
		failures:      make(map[string]int),
		timers:        make(map[*time.Timer]struct{}),
	}
}

// WithClock overrides the scheduler clock; tests only.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Start launches the tick loop. Stop must be called to shut it down.
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.loopWG.Add(1)
	go func() {
		defer s.loopWG.Done()
		ticker := time.NewTicker(s.cfg.Tick)
		defer ticker.Stop()

		s.log.Info("scheduler started", "tick", s.cfg.Tick)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if err := s.runTick(loopCtx); err != nil {
					// never crash the loop; next tick retries
					s.log.Error("scheduler tick failed", "err", err)
				}
			}
		}
	}()
}

// Stop cancels the loop, disarms pending one-off timers, and waits for
// in-flight dispatches to settle. No dispatch starts after Stop returns.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	s.stopped = true
	for tm := range s.timers {
		tm.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
	s.mu.Unlock()

	s.loopWG.Wait()
	s.dispatchWG.Wait()
	s.log.Info("scheduler stopped")
}

// runTick scans for due candidates and dispatches them.
func (s *Scheduler) runTick(ctx context.Context) error {
	due, err := s.candidates.FindRescheduled(ctx)
	if err != nil {
		return fmt.Errorf("find rescheduled: %w", err)
	}

	now := s.clock()
	for _, c := range due {
		resolved, ok := s.resolver.Resolve(c.NextAvailability, now)
		if !ok {
			// unresolved is not an error; the candidate stays visible as
			// Rescheduled until a human fixes the text
			s.log.Debug("availability text unresolved", "candidate_id", c.ID, "text", c.NextAvailability)
			continue
		}

		// Fire-once window sized to the tick: one tick ahead so a slot is not
		// fired early, one tick behind so a slot landing just before the tick
		// is not missed. Re-fires inside the window are stopped by the guard
		// and by the outcome clearing on success.
		delta := resolved.Sub(now)
		if delta < -s.cfg.Tick || delta > s.cfg.Tick {
			continue
		}
		s.dispatch(ctx, c.ID, c.PhoneNumber, true)
	}
	return nil
}

// ScheduleCall is the manual one-off variant: a single-shot timer into the
// same guarded dispatch path the tick loop uses.
func (s *Scheduler) ScheduleCall(candidateID, phoneNumber string, at time.Time) error {
	if candidateID == "" || phoneNumber == "" {
		return errors.New("scheduler: candidate id and phone number required")
	}
	delay := at.Sub(s.clock())
	if delay <= 0 {
		return ErrPastTime
	}

	var tm *time.Timer
	tm = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, tm)
		s.mu.Unlock()
		s.dispatch(context.Background(), candidateID, phoneNumber, false)
	})

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		tm.Stop()
		return errors.New("scheduler: stopped")
	}
	s.timers[tm] = struct{}{}
	s.mu.Unlock()

	s.log.Info("call scheduled", "candidate_id", candidateID, "at", at)
	return nil
}

// dispatch claims the candidate in the guard, then asks the voice engine to
// place the call without blocking the caller. The guard insert happens before
// the network call so two racing due-checks can never both dispatch.
func (s *Scheduler) dispatch(ctx context.Context, candidateID, phoneNumber string, clearOutcome bool) {
	// Joining the wait group and checking stopped share the mutex with Stop,
	// so a dispatch either completes before Stop returns or never starts.
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.dispatchWG.Add(1)
	s.mu.Unlock()

	acquired, err := s.guard.Acquire(ctx, candidateID)
	if err != nil || !acquired {
		s.dispatchWG.Done()
		if err != nil {
			s.log.Error("dedup acquire failed", "candidate_id", candidateID, "err", err)
		}
		return
	}

	// Bookkeeping must survive loop shutdown mid-dispatch.
	opCtx := context.WithoutCancel(ctx)

	go func() {
		defer s.dispatchWG.Done()

		callCtx, cancelCall := context.WithTimeout(opCtx, s.cfg.DispatchTimeout)
		res, err := s.dialer.PlaceCall(callCtx, phoneNumber)
		cancelCall()

		bkCtx, cancelBk := context.WithTimeout(opCtx, 5*time.Second)
		defer cancelBk()

		if err != nil {
			s.onDispatchFailure(bkCtx, candidateID, phoneNumber, err)
			if err := s.guard.ReleaseAfter(bkCtx, candidateID, s.cfg.FailureGrace); err != nil {
				s.log.Error("dedup release failed", "candidate_id", candidateID, "err", err)
			}
			return
		}

		s.resetFailures(candidateID)
		s.log.Info("scheduled call dispatched", "candidate_id", candidateID, "call_id", res.CallID)

		if clearOutcome {
			// the next call's completion writes the authoritative outcome
			if err := s.candidates.ClearOutcome(bkCtx, candidateID); err != nil {
				s.log.Error("clear outcome failed", "candidate_id", candidateID, "err", err)
			}
		}
		if err := s.guard.ReleaseAfter(bkCtx, candidateID, s.cfg.SuccessGrace); err != nil {
			s.log.Error("dedup release failed", "candidate_id", candidateID, "err", err)
		}
	}()
}

func (s *Scheduler) onDispatchFailure(ctx context.Context, candidateID, phoneNumber string, cause error) {
	s.mu.Lock()
	s.failures[candidateID]++
	count := s.failures[candidateID]
	s.mu.Unlock()

	s.log.Error("scheduled call dispatch failed",
		"candidate_id", candidateID, "attempt", count, "err", cause)

	if count != s.cfg.MaxDispatchFailures || s.notifications == nil {
		return
	}
	n := notify.Notification{
		ID:          uuid.NewString(),
		Type:        notify.TypeSystem,
		Title:       "Scheduled Call Failing",
		Message:     fmt.Sprintf("Dispatch to %s failed %d times; manual follow-up needed", phoneNumber, count),
		CandidateID: candidateID,
		Priority:    notify.PriorityHigh,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.notifications.Insert(ctx, n); err != nil {
		s.log.Error("escalation notification failed", "candidate_id", candidateID, "err", err)
	}
}

func (s *Scheduler) resetFailures(candidateID string) {
	s.mu.Lock()
	delete(s.failures, candidateID)
	s.mu.Unlock()
}
