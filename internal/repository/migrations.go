package repository

import (
	"context"
	"fmt"
	"log/slog"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT 'created',
		progress INT NOT NULL DEFAULT 0,
		priority INT NOT NULL DEFAULT 0,
		mode TEXT NOT NULL DEFAULT 'FAST',
		context TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		input_bucket_key TEXT NOT NULL,
		input_object_key TEXT NOT NULL,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size_bytes BIGINT NOT NULL,
		duration_seconds INT NOT NULL,
		plan_snapshot JSONB NOT NULL DEFAULT '{}'::jsonb,
		audit_result JSONB,
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_claim
		ON jobs (priority DESC, created_at ASC)
		WHERE status = 'queued'`,
	`CREATE TABLE IF NOT EXISTS job_results (
		id UUID PRIMARY KEY,
		job_id UUID NOT NULL REFERENCES jobs(id),
		user_id UUID NOT NULL,
		tool TEXT NOT NULL,
		output JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_results_job
		ON job_results (job_id, created_at DESC)`,
}

// Migrate applies the schema statements in order. Each statement is
// idempotent, so reruns on startup are safe.
func (r *Repository) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := r.db.Pool().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	slog.Info("database schema up to date", "statements", len(migrations))
	return nil
}
