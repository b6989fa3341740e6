// Package store defines the durable job store contract the scheduler
// coordinates through. Concurrent workers share no in-memory state; the
// only exclusivity primitive is ConditionalUpdate's compare-and-swap on
// the job's status column.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/infiniteaudio/mixintel/internal/job"
)

// ErrNoMatch reports a ConditionalUpdate whose status precondition no
// longer held at write time: either another worker won the claim or the
// job is already terminal. Expected under contention, not a failure.
var ErrNoMatch = errors.New("job status precondition failed")

type Store interface {
	// Insert persists a new job row. common.ErrConflict on duplicate id.
	Insert(ctx context.Context, j *job.Job) error

	// FindByID returns the job or common.ErrJobNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*job.Job, error)

	// NextQueued returns the next claimable job ordered by priority
	// descending then created_at ascending, or (nil, nil) when the
	// queue is empty.
	NextQueued(ctx context.Context) (*job.Job, error)

	// ConditionalUpdate writes j's mutable fields in a single atomic
	// statement gated on the row's current status still being expected.
	// Returns ErrNoMatch when the precondition fails.
	ConditionalUpdate(ctx context.Context, j *job.Job, expected job.Status) error

	// Update writes j's mutable fields unconditionally. Used only for
	// the finalize step after a successful claim. common.ErrJobNotFound
	// if the row vanished.
	Update(ctx context.Context, j *job.Job) error

	// SaveResult appends a job_results row.
	SaveResult(ctx context.Context, r *job.Result) error

	// LatestResult returns the newest result row for the job, or
	// (nil, nil) when none has been written yet.
	LatestResult(ctx context.Context, jobID uuid.UUID) (*job.Result, error)

	// CountStale counts processing jobs whose started_at is older than
	// the threshold. A non-zero count means a finalize write was lost
	// and an operator needs to look.
	CountStale(ctx context.Context, olderThan time.Duration) (int, error)
}
