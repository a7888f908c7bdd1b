// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vidforge/pipeline/internal/pipeline"
	"github.com/vidforge/pipeline/internal/types"
)

// CreateAsset inserts a new asset in the given initial status.
func (s *Store) CreateAsset(ctx context.Context, a *types.Asset) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, owner_id, status, source_path, subtitle_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Status.String(), a.SourcePath, types.SubtitleNone.String(), now, now)
	if err != nil {
		return fmt.Errorf("create asset %s: %w", a.ID, err)
	}
	return nil
}

// GetAsset loads one asset by id.
func (s *Store) GetAsset(ctx context.Context, id string) (*types.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, status, source_path,
		       duration, width, height, frame_rate, codec, audio_codec, aspect_ratio,
		       bitrate_kbps, video_bitrate_kbps, audio_bitrate_kbps, size_bytes,
		       manifest_path, thumbnail_path, subtitle_type, subtitle_languages,
		       subtitle_checked_at, caption_draft_ref, caption_language,
		       created_at, updated_at
		FROM assets WHERE id = ?`, id)

	var (
		a            types.Asset
		status       string
		subType      string
		langs        string
		subCheckAt   sql.NullTime
		duration     sql.NullFloat64
		width        sql.NullInt64
		height       sql.NullInt64
		frameRate    sql.NullFloat64
		codec        sql.NullString
		audioCodec   sql.NullString
		aspect       sql.NullString
		bitrate      sql.NullInt64
		videoBitrate sql.NullInt64
		audioBitrate sql.NullInt64
		sizeBytes    sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.OwnerID, &status, &a.SourcePath,
		&duration, &width, &height, &frameRate, &codec, &audioCodec, &aspect,
		&bitrate, &videoBitrate, &audioBitrate, &sizeBytes,
		&a.ManifestPath, &a.ThumbnailPath, &subType, &langs,
		&subCheckAt, &a.CaptionDraftRef, &a.CaptionLanguage,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, pipeline.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}

	a.Status = types.AssetStatus(status)
	a.SubtitleType = types.SubtitleType(subType)
	if langs != "" {
		a.SubtitleLangs = strings.Split(langs, ",")
	}
	if subCheckAt.Valid {
		t := subCheckAt.Time
		a.SubtitleCheckAt = &t
	}
	if duration.Valid {
		a.Metadata = &types.TechnicalMetadata{
			Duration:         duration.Float64,
			Width:            int(width.Int64),
			Height:           int(height.Int64),
			FrameRate:        frameRate.Float64,
			Codec:            codec.String,
			AudioCodec:       audioCodec.String,
			AspectRatio:      aspect.String,
			BitrateKbps:      int(bitrate.Int64),
			VideoBitrateKbps: int(videoBitrate.Int64),
			AudioBitrateKbps: int(audioBitrate.Int64),
			SizeBytes:        sizeBytes.Int64,
		}
	}
	return &a, nil
}

// TransitionStatus moves the asset from one of the allowed statuses to the
// target status in a single conditional UPDATE. It returns false when the
// asset was not in any allowed status, which callers treat as "someone else
// got here first" rather than an error.
func (s *Store) TransitionStatus(ctx context.Context, id string, from []types.AssetStatus, to types.AssetStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition for %s: empty source status set", id)
	}
	placeholders := strings.Repeat("?,", len(from))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(from)+3)
	args = append(args, to.String(), time.Now().UTC())
	args = append(args, id)
	for _, st := range from {
		args = append(args, st.String())
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET status = ?, updated_at = ? WHERE id = ? AND status IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return false, fmt.Errorf("transition asset %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetTechnicalMetadata stores the probed stream properties.
func (s *Store) SetTechnicalMetadata(ctx context.Context, id string, md types.TechnicalMetadata) error {
	return s.updateAsset(ctx, id, `
		UPDATE assets SET duration = ?, width = ?, height = ?, frame_rate = ?,
		codec = ?, audio_codec = ?, aspect_ratio = ?,
		bitrate_kbps = ?, video_bitrate_kbps = ?, audio_bitrate_kbps = ?, size_bytes = ?,
		updated_at = ? WHERE id = ?`,
		md.Duration, md.Width, md.Height, md.FrameRate, md.Codec, md.AudioCodec, md.AspectRatio,
		md.BitrateKbps, md.VideoBitrateKbps, md.AudioBitrateKbps, md.SizeBytes)
}

// SetManifestPath records the published HLS master manifest location.
func (s *Store) SetManifestPath(ctx context.Context, id, path string) error {
	return s.updateAsset(ctx, id,
		`UPDATE assets SET manifest_path = ?, updated_at = ? WHERE id = ?`, path)
}

// SetThumbnail records the poster frame location.
func (s *Store) SetThumbnail(ctx context.Context, id, path string) error {
	return s.updateAsset(ctx, id,
		`UPDATE assets SET thumbnail_path = ?, updated_at = ? WHERE id = ?`, path)
}

// SetSubtitleResult records the outcome of the subtitle detection cascade
// together with the time the check ran.
func (s *Store) SetSubtitleResult(ctx context.Context, id string, st types.SubtitleType, languages []string) error {
	return s.updateAsset(ctx, id, `
		UPDATE assets SET subtitle_type = ?, subtitle_languages = ?,
		subtitle_checked_at = ?, updated_at = ? WHERE id = ?`,
		st.String(), strings.Join(languages, ","), time.Now().UTC())
}

// SetCaptionDraft records the caption draft location and its language.
func (s *Store) SetCaptionDraft(ctx context.Context, id, ref, language string) error {
	return s.updateAsset(ctx, id,
		`UPDATE assets SET caption_draft_ref = ?, caption_language = ?, updated_at = ? WHERE id = ?`,
		ref, language)
}

// updateAsset runs a narrow UPDATE whose final two placeholders are
// updated_at and id, and maps zero affected rows to ErrNotFound.
func (s *Store) updateAsset(ctx context.Context, id, query string, args ...any) error {
	args = append(args, time.Now().UTC(), id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("asset %s: %w", id, pipeline.ErrNotFound)
	}
	return nil
}
