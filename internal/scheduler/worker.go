package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Worker is the cancellable polling loop that drives continuous
// processing: claim eagerly while work is available, sleep on an empty
// queue, back off on errors, and never die on a transient failure.
type Worker struct {
	sched        *Scheduler
	pollInterval time.Duration
	errorBackoff time.Duration
}

func NewWorker(sched *Scheduler, pollInterval, errorBackoff time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if errorBackoff <= 0 {
		errorBackoff = pollInterval
	}
	return &Worker{
		sched:        sched,
		pollInterval: pollInterval,
		errorBackoff: errorBackoff,
	}
}

// Run loops until ctx is cancelled. Cancellation is observed at
// iteration and sleep boundaries only: an in-flight
// claim-process-finalize cycle always runs to completion, so a claimed
// job is never abandoned in processing by a shutdown.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("worker loop started", "poll_interval", w.pollInterval, "error_backoff", w.errorBackoff)

	// Cycles run on a detached context so cancelling the loop does not
	// abort a claim that already happened.
	cycleCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			slog.Info("worker loop stopped")
			return
		}

		outcome, err := w.sched.ClaimAndProcessOne(cycleCtx, uuid.Nil)
		switch {
		case err != nil:
			slog.Error("claim cycle failed", "err", err)
			if !w.sleep(ctx, w.errorBackoff) {
				slog.Info("worker loop stopped")
				return
			}
		case outcome.Kind == OutcomeNoWork:
			if !w.sleep(ctx, w.pollInterval) {
				slog.Info("worker loop stopped")
				return
			}
		default:
			// Processed, Failed, or LostRace: the queue has work,
			// go again immediately.
		}
	}
}

// sleep waits for d or cancellation; false means the loop should exit.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
