// Package repository is the Postgres job store. Claim exclusivity rests
// on ConditionalUpdate being a single UPDATE ... WHERE status = expected
// statement: the database serializes concurrent claims and exactly one
// writer observes a matched row.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/infiniteaudio/mixintel/internal/common"
	"github.com/infiniteaudio/mixintel/internal/database"
	"github.com/infiniteaudio/mixintel/internal/job"
	"github.com/infiniteaudio/mixintel/internal/store"
)

type Repository struct {
	db *database.DB
}

func New(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *database.DB {
	return r.db
}

const jobColumns = `id, user_id, type, status, stage, progress, priority, mode, context,
	created_at, started_at, completed_at,
	input_bucket_key, input_object_key, filename, content_type, size_bytes, duration_seconds,
	plan_snapshot, audit_result, error_message`

func (r *Repository) Insert(ctx context.Context, j *job.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}

	plan, err := json.Marshal(j.PlanSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal plan snapshot: %w", err)
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		j.ID, j.UserID, j.Type, j.Status, j.Stage, j.Progress, j.Priority, j.Mode, j.Context,
		j.CreatedAt, j.StartedAt, j.CompletedAt,
		j.BucketKey, j.ObjectKey, j.Filename, j.ContentType, j.SizeBytes, j.DurationSeconds,
		plan, nullableJSON(j.AuditResult), nullableText(j.ErrorMessage),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("job %s: %w", j.ID, common.ErrConflict)
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	j, err := scanJob(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func (r *Repository) NextQueued(ctx context.Context) (*job.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE type = $1 AND status = $2
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
	`
	j, err := scanJob(r.db.Pool().QueryRow(ctx, query, job.TypeMixIntelligence, job.StatusQueued))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query queued jobs: %w", err)
	}
	return j, nil
}

const updateJobSet = `
	SET status = $2, stage = $3, progress = $4,
	    started_at = $5, completed_at = $6,
	    audit_result = $7, error_message = $8`

func (r *Repository) ConditionalUpdate(ctx context.Context, j *job.Job, expected job.Status) error {
	query := `UPDATE jobs` + updateJobSet + ` WHERE id = $1 AND status = $9`

	tag, err := r.db.Pool().Exec(ctx, query,
		j.ID, j.Status, j.Stage, j.Progress,
		j.StartedAt, j.CompletedAt,
		nullableJSON(j.AuditResult), nullableText(j.ErrorMessage),
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", j.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNoMatch
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, j *job.Job) error {
	query := `UPDATE jobs` + updateJobSet + ` WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query,
		j.ID, j.Status, j.Stage, j.Progress,
		j.StartedAt, j.CompletedAt,
		nullableJSON(j.AuditResult), nullableText(j.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", j.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrJobNotFound
	}
	return nil
}

func (r *Repository) SaveResult(ctx context.Context, res *job.Result) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO job_results (id, job_id, user_id, tool, output, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool().Exec(ctx, query,
		res.ID, res.JobID, res.UserID, res.Tool, []byte(res.Output), res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job result: %w", err)
	}
	return nil
}

func (r *Repository) LatestResult(ctx context.Context, jobID uuid.UUID) (*job.Result, error) {
	query := `
		SELECT id, job_id, user_id, tool, output, created_at
		FROM job_results
		WHERE job_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var res job.Result
	var output []byte
	err := r.db.Pool().QueryRow(ctx, query, jobID).Scan(
		&res.ID, &res.JobID, &res.UserID, &res.Tool, &output, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job result: %w", err)
	}
	res.Output = output
	return &res, nil
}

func (r *Repository) CountStale(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM jobs
		WHERE status = $1 AND started_at < NOW() - $2::interval
	`
	var n int
	err := r.db.Pool().QueryRow(ctx, query, job.StatusProcessing, olderThan.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale jobs: %w", err)
	}
	return n, nil
}

func scanJob(row pgx.Row) (*job.Job, error) {
	var j job.Job
	var plan, audit []byte
	var errMsg *string

	err := row.Scan(
		&j.ID, &j.UserID, &j.Type, &j.Status, &j.Stage, &j.Progress, &j.Priority, &j.Mode, &j.Context,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt,
		&j.BucketKey, &j.ObjectKey, &j.Filename, &j.ContentType, &j.SizeBytes, &j.DurationSeconds,
		&plan, &audit, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	if len(plan) > 0 {
		if err := json.Unmarshal(plan, &j.PlanSnapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan snapshot: %w", err)
		}
	}
	if len(audit) > 0 {
		j.AuditResult = audit
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	return &j, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	// 23505 = unique_violation
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
