// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vidforge/pipeline/internal/pipeline"
	"github.com/vidforge/pipeline/internal/types"
)

// CreateJob registers a new pending job.
func (s *Store) CreateJob(ctx context.Context, j *types.Job) error {
	now := time.Now().UTC()
	j.Status = types.JobPending
	j.CreatedAt = now
	j.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, asset_id, kind, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		j.ID, j.AssetID, j.Kind.String(), j.Status.String(), now, now)
	if err != nil {
		return fmt.Errorf("create job %s: %w", j.ID, err)
	}
	return nil
}

// GetJob loads one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*types.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, kind, status, error, attempts, created_at, updated_at
		FROM jobs WHERE id = ?`, id)

	var (
		j      types.Job
		kind   string
		status string
	)
	err := row.Scan(&j.ID, &j.AssetID, &kind, &status, &j.Error, &j.Attempts, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, pipeline.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	j.Kind = types.JobKind(kind)
	j.Status = types.JobStatus(status)
	return &j, nil
}

// ListJobsForAsset returns all jobs for one asset, newest first.
func (s *Store) ListJobsForAsset(ctx context.Context, assetID string) ([]types.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, kind, status, error, attempts, created_at, updated_at
		FROM jobs WHERE asset_id = ? ORDER BY created_at DESC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for %s: %w", assetID, err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		var (
			j      types.Job
			kind   string
			status string
		)
		if err := rows.Scan(&j.ID, &j.AssetID, &kind, &status, &j.Error, &j.Attempts, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.Kind = types.JobKind(kind)
		j.Status = types.JobStatus(status)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkJobRunning transitions a pending job to running and bumps the attempt
// counter.
func (s *Store) MarkJobRunning(ctx context.Context, id string) error {
	return s.updateJob(ctx, id, `
		UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		types.JobRunning.String())
}

// MarkJobSuccess transitions a running job to success.
func (s *Store) MarkJobSuccess(ctx context.Context, id string) error {
	return s.updateJob(ctx, id, `
		UPDATE jobs SET status = ?, error = '', updated_at = ? WHERE id = ?`,
		types.JobSuccess.String())
}

// MarkJobFailure transitions a running job to failure with the final error.
func (s *Store) MarkJobFailure(ctx context.Context, id, errMsg string) error {
	return s.updateJob(ctx, id, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		types.JobFailure.String(), errMsg)
}

func (s *Store) updateJob(ctx context.Context, id, query string, args ...any) error {
	args = append(args, time.Now().UTC(), id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", id, pipeline.ErrNotFound)
	}
	return nil
}
