// Package scheduler claims queued mix jobs and drives them to a
// terminal state. Concurrent schedulers, in-process or across machines,
// coordinate only through the store's conditional update: a claim is a
// compare-and-swap of status queued -> processing, and losing that race
// is an expected outcome, not an error.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/infiniteaudio/mixintel/internal/analyzer"
	"github.com/infiniteaudio/mixintel/internal/job"
	"github.com/infiniteaudio/mixintel/internal/store"
)

type OutcomeKind string

const (
	// OutcomeNoWork: no queued job matched the selection.
	OutcomeNoWork OutcomeKind = "no_work"
	// OutcomeLostRace: another worker claimed the job first, or the
	// targeted job is already terminal. No side effects.
	OutcomeLostRace OutcomeKind = "lost_race"
	// OutcomeProcessed: the job ran and was finalized as completed.
	OutcomeProcessed OutcomeKind = "processed"
	// OutcomeFailed: the analyzer failed and the job was finalized as
	// failed. A normal outcome for the caller, not a scheduler error.
	OutcomeFailed OutcomeKind = "failed"
)

type Outcome struct {
	Kind    OutcomeKind
	JobID   uuid.UUID
	Job     *job.Job
	Message string
}

type Scheduler struct {
	store    store.Store
	analyzer analyzer.Analyzer
}

func New(st store.Store, an analyzer.Analyzer) *Scheduler {
	return &Scheduler{store: st, analyzer: an}
}

// ClaimAndProcessOne selects at most one eligible job, claims it
// atomically, runs the analyzer, and finalizes the result. targetID
// uuid.Nil means "next from the queue"; a concrete id claims that job
// specifically (common.ErrJobNotFound surfaces for unknown ids).
//
// A non-nil error means the cycle itself broke (store unreachable, lost
// finalize write); every job-level result, including analyzer failure,
// comes back as an Outcome.
func (s *Scheduler) ClaimAndProcessOne(ctx context.Context, targetID uuid.UUID) (Outcome, error) {
	var j *job.Job
	var err error

	if targetID != uuid.Nil {
		j, err = s.store.FindByID(ctx, targetID)
		if err != nil {
			return Outcome{}, err
		}
	} else {
		j, err = s.store.NextQueued(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to select next job: %w", err)
		}
		if j == nil {
			return Outcome{Kind: OutcomeNoWork}, nil
		}
	}

	claimed, err := job.BeginProcessing(*j)
	if err != nil {
		// Targeted job already left queued; same as losing the claim.
		return Outcome{Kind: OutcomeLostRace, JobID: j.ID}, nil
	}

	if err := s.store.ConditionalUpdate(ctx, &claimed, job.StatusQueued); err != nil {
		if errors.Is(err, store.ErrNoMatch) {
			slog.Debug("lost claim race", "job_id", j.ID)
			return Outcome{Kind: OutcomeLostRace, JobID: j.ID}, nil
		}
		return Outcome{}, fmt.Errorf("claim write for job %s: %w", j.ID, err)
	}

	slog.Info("job claimed", "job_id", claimed.ID, "context", claimed.Context, "priority", claimed.Priority)

	audit, analyzeErr := s.analyzer.Analyze(ctx, claimed.Context, claimed.InputRef)
	if analyzeErr != nil {
		return s.finalizeFailed(ctx, claimed, analyzeErr.Error())
	}
	return s.finalizeCompleted(ctx, claimed, audit)
}

func (s *Scheduler) finalizeCompleted(ctx context.Context, claimed job.Job, audit []byte) (Outcome, error) {
	res := &job.Result{
		JobID:  claimed.ID,
		UserID: claimed.UserID,
		Tool:   job.ToolMixIntelligence,
		Output: audit,
	}
	if err := s.store.SaveResult(ctx, res); err != nil {
		// The audit exists only in memory; fail the job cleanly rather
		// than leave it processing with nothing to show.
		_, _ = s.finalizeFailed(ctx, claimed, "failed to write job result")
		return Outcome{}, fmt.Errorf("save result for job %s: %w", claimed.ID, err)
	}

	done, err := job.Complete(claimed, audit)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.store.Update(ctx, &done); err != nil {
		// The job row is now stuck in processing; surfaced via the
		// staleness check, no automatic recovery here.
		slog.Error("finalize write lost, job stuck in processing", "job_id", done.ID, "err", err)
		return Outcome{}, fmt.Errorf("finalize job %s: %w", done.ID, err)
	}

	slog.Info("job completed", "job_id", done.ID, "result_id", res.ID)
	return Outcome{Kind: OutcomeProcessed, JobID: done.ID, Job: &done}, nil
}

func (s *Scheduler) finalizeFailed(ctx context.Context, claimed job.Job, message string) (Outcome, error) {
	failed, err := job.Fail(claimed, message)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.store.Update(ctx, &failed); err != nil {
		slog.Error("failed to persist job failure", "job_id", claimed.ID, "err", err)
		return Outcome{}, fmt.Errorf("persist failure of job %s: %w", claimed.ID, err)
	}

	slog.Warn("job failed", "job_id", failed.ID, "error_message", message)
	return Outcome{Kind: OutcomeFailed, JobID: failed.ID, Job: &failed, Message: message}, nil
}
