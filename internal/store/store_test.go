// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidforge/pipeline/internal/pipeline"
	"github.com/vidforge/pipeline/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestAsset(t *testing.T, s *Store, status types.AssetStatus) *types.Asset {
	t.Helper()
	a := &types.Asset{
		ID:         uuid.NewString(),
		OwnerID:    "user-1",
		Status:     status,
		SourcePath: "videos/source/" + uuid.NewString() + ".mp4",
	}
	require.NoError(t, s.CreateAsset(context.Background(), a))
	return a
}

func TestCreateGetAsset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAsset(t, s, types.AssetUploading)

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, types.AssetUploading, got.Status)
	assert.Equal(t, types.SubtitleNone, got.SubtitleType)
	assert.Nil(t, got.Metadata, "no metadata before probing")
}

func TestGetAssetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAsset(context.Background(), "missing")
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestTransitionStatusConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAsset(t, s, types.AssetUploading)

	ok, err := s.TransitionStatus(ctx, a.ID,
		[]types.AssetStatus{types.AssetUploading, types.AssetProcessing}, types.AssetProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	// Asset is now processing; a transition requiring pending_review must fail
	// without touching the row.
	ok, err = s.TransitionStatus(ctx, a.ID,
		[]types.AssetStatus{types.AssetPendingReview}, types.AssetApproved)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AssetProcessing, got.Status)
}

func TestSetTechnicalMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAsset(t, s, types.AssetProcessing)

	md := types.TechnicalMetadata{
		Duration:         123.456,
		Width:            1920,
		Height:           1080,
		FrameRate:        29.97,
		Codec:            "h264",
		AudioCodec:       "aac",
		AspectRatio:      "16:9",
		BitrateKbps:      5200,
		VideoBitrateKbps: 5000,
		AudioBitrateKbps: 192,
		SizeBytes:        80216064,
	}
	require.NoError(t, s.SetTechnicalMetadata(ctx, a.ID, md))

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, md, *got.Metadata)
}

func TestSetSubtitleResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAsset(t, s, types.AssetProcessing)

	require.NoError(t, s.SetSubtitleResult(ctx, a.ID, types.SubtitleSoft, []string{"deu", "eng"}))

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubtitleSoft, got.SubtitleType)
	assert.Equal(t, []string{"deu", "eng"}, got.SubtitleLangs)
	require.NotNil(t, got.SubtitleCheckAt)
	assert.False(t, got.SubtitleCheckAt.IsZero())
}

func TestSetCaptionDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAsset(t, s, types.AssetAwaitCaptionEdit)

	require.NoError(t, s.SetCaptionDraft(ctx, a.ID, "captions/"+a.ID+"/draft.vtt", "en"))

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "captions/"+a.ID+"/draft.vtt", got.CaptionDraftRef)
	assert.Equal(t, "en", got.CaptionLanguage)
}

func TestJobLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAsset(t, s, types.AssetUploading)

	j := &types.Job{ID: uuid.NewString(), AssetID: a.ID, Kind: types.JobTranscode}
	require.NoError(t, s.CreateJob(ctx, j))

	require.NoError(t, s.MarkJobRunning(ctx, j.ID))
	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobRunning, got.Status)
	assert.Equal(t, 1, got.Attempts)

	require.NoError(t, s.MarkJobFailure(ctx, j.ID, "ffmpeg exited 1"))
	got, err = s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailure, got.Status)
	assert.Equal(t, "ffmpeg exited 1", got.Error)

	jobs, err := s.ListJobsForAsset(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, j.ID, jobs[0].ID)
}

func TestModerationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAsset(t, s, types.AssetPendingReview)

	require.NoError(t, s.BeginModeration(ctx, a.ID, types.RiskMedium, 0.6, false))

	r, err := s.GetModeration(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ModerationProcessing, r.Status)
	assert.Equal(t, types.RiskMedium, r.PolicyLevel)
	assert.InDelta(t, 0.6, r.Threshold, 1e-9)

	r.FramesScored = 40
	r.FramesFlagged = 2
	r.Flagged = []types.FlaggedFrame{
		{Index: 7, Timestamp: 7.0, Confidence: 0.8123, Level: "medium",
			Scores: map[string]float64{"neutral": 0.1, "low": 0.9, "medium": 0.8123, "high": 0.4}},
		{Index: 12, Timestamp: 12.0, Confidence: 0.9001, Level: "medium",
			Scores: map[string]float64{"neutral": 0.05, "low": 0.95, "medium": 0.9001, "high": 0.7}},
	}
	r.MaxNeutral = 0.1
	r.MaxLow = 0.95
	r.MaxMedium = 0.9001
	r.MaxHigh = 0.7
	require.NoError(t, s.UpdateModerationProgress(ctx, r))

	r.Verdict = types.VerdictUnsafe
	r.Confidence = 0.9001
	require.NoError(t, s.CompleteModeration(ctx, r))

	got, err := s.GetModeration(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ModerationCompleted, got.Status)
	assert.Equal(t, types.VerdictUnsafe, got.Verdict)
	require.Len(t, got.Flagged, 2)
	assert.Equal(t, 12, got.Flagged[1].Index)
	assert.InDelta(t, 0.9001, got.Flagged[1].Scores["medium"], 1e-9)
	assert.InDelta(t, 0.1, got.MaxNeutral, 1e-9)
	assert.InDelta(t, 0.95, got.MaxLow, 1e-9)
	require.NotNil(t, got.CompletedAt)
}

func TestBeginModerationRejectsTerminalWithoutReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAsset(t, s, types.AssetPendingReview)

	require.NoError(t, s.BeginModeration(ctx, a.ID, types.RiskMedium, 0.6, false))
	r, err := s.GetModeration(ctx, a.ID)
	require.NoError(t, err)
	r.Verdict = types.VerdictSafe
	require.NoError(t, s.CompleteModeration(ctx, r))

	err = s.BeginModeration(ctx, a.ID, types.RiskMedium, 0.6, false)
	assert.Error(t, err)

	// Reset clears the run and starts over.
	require.NoError(t, s.BeginModeration(ctx, a.ID, types.RiskHigh, 0.5, true))
	got, err := s.GetModeration(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ModerationProcessing, got.Status)
	assert.Equal(t, types.RiskHigh, got.PolicyLevel)
	assert.Zero(t, got.FramesScored)
	assert.Empty(t, got.Flagged)
	assert.Nil(t, got.CompletedAt)
}

func TestFailModeration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAsset(t, s, types.AssetPendingReview)

	require.NoError(t, s.BeginModeration(ctx, a.ID, types.RiskMedium, 0.6, false))
	require.NoError(t, s.FailModeration(ctx, a.ID, "classifier unavailable"))

	got, err := s.GetModeration(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ModerationFailed, got.Status)
	assert.Equal(t, "classifier unavailable", got.Error)
}

func TestUpdateMissingRowsReturnNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SetManifestPath(ctx, "missing", "x/master.m3u8")
	assert.True(t, errors.Is(err, pipeline.ErrNotFound))

	err = s.MarkJobRunning(ctx, "missing")
	assert.True(t, errors.Is(err, pipeline.ErrNotFound))
}
