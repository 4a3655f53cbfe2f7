package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"screening-platform/internal/calls"
)

// Reaper sweeps calls stuck in a non-terminal status past a threshold and
// force-fails them. A blunt liveness guarantee: a lost terminal report (engine
// crash, dropped callback) otherwise leaves the call active forever. The
// threshold should exceed the longest plausible legitimate call.
type Reaper struct {
	calls     *calls.Service
	interval  time.Duration
	threshold time.Duration

	log   *slog.Logger
	clock func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewReaper(svc *calls.Service, interval, threshold time.Duration, log *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if threshold <= 0 {
		threshold = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{
		calls:     svc,
		interval:  interval,
		threshold: threshold,
		log:       log,
		clock:     time.Now,
	}
}

// WithClock overrides the reaper clock; tests only.
func (r *Reaper) WithClock(clock func() time.Time) *Reaper {
	r.clock = clock
	return r
}

// Start launches the sweep loop, sweeping once immediately.
func (r *Reaper) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.log.Info("stuck call reaper started", "interval", r.interval, "threshold", r.threshold)
		r.sweep(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				r.sweep(loopCtx)
			}
		}
	}()
}

func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("stuck call reaper stopped")
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := r.clock().Add(-r.threshold)
	n, err := r.calls.FailStuck(ctx, cutoff)
	if err != nil {
		// logged and retried next tick; the loop never dies
		r.log.Error("stuck call sweep failed", "err", err)
		return
	}
	if n > 0 {
		r.log.Info("stuck calls cleaned up", "count", n)
	}
}
