// SPDX-License-Identifier: MIT

package moderate

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/vidforge/pipeline/internal/events"
	"github.com/vidforge/pipeline/internal/fsutil"
	"github.com/vidforge/pipeline/internal/log"
	"github.com/vidforge/pipeline/internal/metrics"
	"github.com/vidforge/pipeline/internal/transcode"
	"github.com/vidforge/pipeline/internal/types"
)

// snapshotEvery is how many scored frames pass between persisted progress
// snapshots. A crash loses at most this much scanning work.
const snapshotEvery = 10

// Store is the moderation persistence the engine needs.
type Store interface {
	GetAsset(ctx context.Context, id string) (*types.Asset, error)
	BeginModeration(ctx context.Context, assetID string, level types.RiskLevel, threshold float64, reset bool) error
	UpdateModerationProgress(ctx context.Context, r *types.ModerationRecord) error
	CompleteModeration(ctx context.Context, r *types.ModerationRecord) error
}

// Progress is the scan state reported after each scored batch.
type Progress struct {
	Current       int
	Total         int
	FlaggedCount  int
	RecentFlagged []types.FlaggedFrame
}

// ProgressFunc observes scanning progress after each scored batch.
type ProgressFunc func(assetID string, p Progress)

// Engine runs moderation scans.
type Engine struct {
	Store      Store
	Runner     transcode.Runner
	Classifier Classifier
	Events     events.Publisher
	MediaRoot  string

	// OnProgress, when set, is called after every scored batch.
	OnProgress ProgressFunc

	logger zerolog.Logger
}

// NewEngine creates a moderation engine.
func NewEngine(store Store, runner transcode.Runner, classifier Classifier, pub events.Publisher, mediaRoot string) *Engine {
	return &Engine{
		Store:      store,
		Runner:     runner,
		Classifier: classifier,
		Events:     pub,
		MediaRoot:  mediaRoot,
		logger:     log.WithComponent("moderate"),
	}
}

// Run scans one asset under the given policy. reset allows re-running an
// asset whose previous scan already reached a terminal state.
//
// A scan error leaves the record in its processing state so a retried Run
// starts over cleanly; the caller marks the record failed once it stops
// retrying.
func (e *Engine) Run(ctx context.Context, assetID string, policy Policy, reset bool) error {
	policy = policy.withDefaults()
	logger := e.logger.With().Str("asset_id", assetID).Logger()

	asset, err := e.Store.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	if err := e.Store.BeginModeration(ctx, assetID, policy.Level, policy.Threshold, reset); err != nil {
		return err
	}

	record, err := e.scan(ctx, logger, asset, policy)
	if err != nil {
		return err
	}

	if err := e.Store.CompleteModeration(ctx, record); err != nil {
		return err
	}
	e.publish(ctx, asset, events.TypeModerationComplete, map[string]any{
		"verdict":        record.Verdict.String(),
		"confidence":     record.Confidence,
		"frames_scored":  record.FramesScored,
		"frames_flagged": record.FramesFlagged,
	})
	logger.Info().
		Str("event", "moderate.complete").
		Str("verdict", record.Verdict.String()).
		Int("frames_scored", record.FramesScored).
		Int("frames_flagged", record.FramesFlagged).
		Msg("moderation scan finished")
	return nil
}

func (e *Engine) scan(ctx context.Context, logger zerolog.Logger, asset *types.Asset, policy Policy) (*types.ModerationRecord, error) {
	sourceAbs, err := fsutil.ConfineRelPath(e.MediaRoot, asset.SourcePath)
	if err != nil {
		return nil, err
	}
	if err := fsutil.IsRegularFile(sourceAbs); err != nil {
		return nil, fmt.Errorf("source file for %s: %w", asset.ID, err)
	}

	handle, err := e.Classifier.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := handle.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("releasing classifier session")
		}
	}()

	framePaths, cleanup, err := e.extractFrames(ctx, sourceAbs, policy.FPS)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	record := &types.ModerationRecord{
		AssetID:     asset.ID,
		Status:      types.ModerationProcessing,
		PolicyLevel: policy.Level,
		Threshold:   policy.Threshold,
	}
	lastSnapshot := 0
	total := len(framePaths)

	for start := 0; start < total; start += policy.BatchSize {
		end := start + policy.BatchSize
		if end > total {
			end = total
		}
		batch := framePaths[start:end]

		scores, err := handle.Score(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(scores) != len(batch) {
			return nil, fmt.Errorf("classifier returned %d scores for %d frames", len(scores), len(batch))
		}

		batchFlaggedFrom := len(record.Flagged)
		for i, s := range scores {
			idx := start + i
			ts := round2(float64(idx) / policy.FPS)

			record.MaxNeutral = maxFloat(record.MaxNeutral, s[types.RiskNeutral])
			record.MaxLow = maxFloat(record.MaxLow, Cumulative(s, types.RiskLow))
			record.MaxMedium = maxFloat(record.MaxMedium, Cumulative(s, types.RiskMedium))
			record.MaxHigh = maxFloat(record.MaxHigh, Cumulative(s, types.RiskHigh))

			record.FramesScored++
			metrics.FramesScored.Inc()

			score := Cumulative(s, policy.Level)
			if score >= policy.Threshold {
				flagged := types.FlaggedFrame{
					Index:      idx,
					Timestamp:  ts,
					Confidence: round4(score),
					Level:      policy.Level.String(),
					Scores:     snapshotScores(s),
				}
				if still, err := e.saveStill(asset.ID, framePaths[idx], idx, ts); err != nil {
					logger.Warn().Err(err).Int("frame", idx).Msg("saving flagged still")
				} else {
					flagged.StillPath = still
				}
				record.Flagged = append(record.Flagged, flagged)
				record.FramesFlagged++
				metrics.FramesFlagged.Inc()
			}

			if record.FramesScored-lastSnapshot >= snapshotEvery {
				if err := e.Store.UpdateModerationProgress(ctx, record); err != nil {
					return nil, err
				}
				lastSnapshot = record.FramesScored
			}
		}

		recent := record.Flagged[batchFlaggedFrom:]
		if e.OnProgress != nil {
			e.OnProgress(asset.ID, Progress{
				Current:       record.FramesScored,
				Total:         total,
				FlaggedCount:  record.FramesFlagged,
				RecentFlagged: recent,
			})
		}
		e.publish(ctx, asset, events.TypeModerationProgress, map[string]any{
			"current":        record.FramesScored,
			"total":          total,
			"flagged":        record.FramesFlagged,
			"recent_flagged": recent,
		})
	}

	record.Verdict, record.Confidence = verdict(record)
	return record, nil
}

// extractFrames samples the source at fps into a scratch directory and
// returns the ordered frame paths plus a cleanup func.
func (e *Engine) extractFrames(ctx context.Context, sourceAbs string, fps float64) ([]string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "moderation-frames-*")
	if err != nil {
		return nil, nil, fmt.Errorf("moderation workspace: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	err = e.Runner.Run(ctx, []string{
		"-hide_banner",
		"-y",
		"-i", sourceAbs,
		"-vf", fmt.Sprintf("fps=%g", fps),
		filepath.Join(tmpDir, "frame_%05d.png"),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	paths, err := filepath.Glob(filepath.Join(tmpDir, "frame_*.png"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if len(paths) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("no frames sampled from %s", sourceAbs)
	}
	sort.Strings(paths)
	return paths, cleanup, nil
}

// saveStill archives a flagged frame for the review UI and returns its path
// relative to the media root.
func (e *Engine) saveStill(assetID, framePath string, idx int, ts float64) (string, error) {
	rel := path.Join("ai_moderation", "flagged_frames", assetID,
		fmt.Sprintf("frame_%d_%.2fs.jpg", idx, ts))
	abs, err := fsutil.ConfineRelPath(e.MediaRoot, rel)
	if err != nil {
		return "", err
	}
	if err := writeStill(framePath, abs); err != nil {
		return "", err
	}
	return rel, nil
}

func (e *Engine) publish(ctx context.Context, asset *types.Asset, eventType string, data map[string]any) {
	err := e.Events.Publish(ctx, events.Event{
		Type:    eventType,
		AssetID: asset.ID,
		OwnerID: asset.OwnerID,
		Data:    data,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("type", eventType).Msg("event publish failed")
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
