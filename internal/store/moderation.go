// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vidforge/pipeline/internal/pipeline"
	"github.com/vidforge/pipeline/internal/types"
)

// BeginModeration creates (or restarts) the moderation record for an asset.
// A record in a terminal state is only overwritten when reset is true.
func (s *Store) BeginModeration(ctx context.Context, assetID string, level types.RiskLevel, threshold float64, reset bool) error {
	existing, err := s.GetModeration(ctx, assetID)
	if err != nil && !errors.Is(err, pipeline.ErrNotFound) {
		return err
	}
	if existing != nil && existing.Status.IsTerminal() && !reset {
		return fmt.Errorf("moderation for %s already %s", assetID, existing.Status)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO moderation_records (asset_id, status, policy_level, threshold, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			status = excluded.status, policy_level = excluded.policy_level,
			threshold = excluded.threshold, frames_scored = 0, frames_flagged = 0,
			flagged_json = '[]', max_neutral = 0, max_low = 0, max_medium = 0,
			max_high = 0, verdict = '', confidence = 0, error = '',
			started_at = excluded.started_at, completed_at = NULL`,
		assetID, types.ModerationProcessing.String(), level.String(), threshold, now)
	if err != nil {
		return fmt.Errorf("begin moderation for %s: %w", assetID, err)
	}
	return nil
}

// GetModeration loads the moderation record for an asset.
func (s *Store) GetModeration(ctx context.Context, assetID string) (*types.ModerationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT asset_id, status, policy_level, threshold, frames_scored, frames_flagged,
		       flagged_json, max_neutral, max_low, max_medium, max_high,
		       verdict, confidence, error, started_at, completed_at
		FROM moderation_records WHERE asset_id = ?`, assetID)

	var (
		r           types.ModerationRecord
		status      string
		level       string
		verdict     string
		flaggedJSON string
		completedAt sql.NullTime
	)
	err := row.Scan(&r.AssetID, &status, &level, &r.Threshold, &r.FramesScored, &r.FramesFlagged,
		&flaggedJSON, &r.MaxNeutral, &r.MaxLow, &r.MaxMedium, &r.MaxHigh,
		&verdict, &r.Confidence, &r.Error, &r.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("moderation for %s: %w", assetID, pipeline.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get moderation for %s: %w", assetID, err)
	}

	r.Status = types.ModerationStatus(status)
	r.PolicyLevel = types.RiskLevel(level)
	r.Verdict = types.ModerationVerdict(verdict)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(flaggedJSON), &r.Flagged); err != nil {
		return nil, fmt.Errorf("decode flagged frames for %s: %w", assetID, err)
	}
	return &r, nil
}

// UpdateModerationProgress persists a periodic snapshot of a running scan.
func (s *Store) UpdateModerationProgress(ctx context.Context, r *types.ModerationRecord) error {
	flagged, err := json.Marshal(r.Flagged)
	if err != nil {
		return fmt.Errorf("encode flagged frames for %s: %w", r.AssetID, err)
	}
	return s.updateModeration(ctx, r.AssetID, `
		UPDATE moderation_records SET frames_scored = ?, frames_flagged = ?,
		flagged_json = ?, max_neutral = ?, max_low = ?, max_medium = ?, max_high = ?
		WHERE asset_id = ?`,
		r.FramesScored, r.FramesFlagged, string(flagged),
		r.MaxNeutral, r.MaxLow, r.MaxMedium, r.MaxHigh)
}

// CompleteModeration finalizes a run with its verdict.
func (s *Store) CompleteModeration(ctx context.Context, r *types.ModerationRecord) error {
	flagged, err := json.Marshal(r.Flagged)
	if err != nil {
		return fmt.Errorf("encode flagged frames for %s: %w", r.AssetID, err)
	}
	return s.updateModeration(ctx, r.AssetID, `
		UPDATE moderation_records SET status = ?, frames_scored = ?, frames_flagged = ?,
		flagged_json = ?, max_neutral = ?, max_low = ?, max_medium = ?, max_high = ?,
		verdict = ?, confidence = ?, completed_at = ?
		WHERE asset_id = ?`,
		types.ModerationCompleted.String(), r.FramesScored, r.FramesFlagged,
		string(flagged), r.MaxNeutral, r.MaxLow, r.MaxMedium, r.MaxHigh,
		r.Verdict.String(), r.Confidence, time.Now().UTC())
}

// FailModeration marks a run failed with the final error message.
func (s *Store) FailModeration(ctx context.Context, assetID, errMsg string) error {
	return s.updateModeration(ctx, assetID, `
		UPDATE moderation_records SET status = ?, error = ?, completed_at = ?
		WHERE asset_id = ?`,
		types.ModerationFailed.String(), errMsg, time.Now().UTC())
}

func (s *Store) updateModeration(ctx context.Context, assetID, query string, args ...any) error {
	args = append(args, assetID)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update moderation for %s: %w", assetID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("moderation for %s: %w", assetID, pipeline.ErrNotFound)
	}
	return nil
}
