// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vidforge/pipeline/internal/caption"
	"github.com/vidforge/pipeline/internal/events"
	"github.com/vidforge/pipeline/internal/fsutil"
	"github.com/vidforge/pipeline/internal/moderate"
	"github.com/vidforge/pipeline/internal/queue"
	"github.com/vidforge/pipeline/internal/subtitle"
	"github.com/vidforge/pipeline/internal/types"
)

// detectSubtitles runs the detection cascade and routes the asset.
//
// Hard subtitles make caption editing pointless, so the asset goes straight
// to transcoding. Everything else parks in await_caption_edit for the owner
// to review or generate captions. An inconclusive scan routes the same way:
// a human will see the player soon enough.
func (p *Pool) detectSubtitles(ctx context.Context, msg queue.Message) error {
	asset, err := p.Store.GetAsset(ctx, msg.AssetID)
	if err != nil {
		return err
	}
	sourceAbs, err := fsutil.ConfineRelPath(p.MediaRoot, asset.SourcePath)
	if err != nil {
		return err
	}

	res, err := p.Detector.Detect(ctx, sourceAbs)
	if err != nil {
		return err
	}

	subType := types.SubtitleNone
	switch {
	case res.Soft:
		subType = types.SubtitleSoft
	case res.Hard:
		subType = types.SubtitleHard
	}
	if err := p.Store.SetSubtitleResult(ctx, msg.AssetID, subType, res.Languages); err != nil {
		return err
	}

	p.publishFor(ctx, asset, events.TypeSubtitleDetected, map[string]any{
		"subtitle_type": subType.String(),
		"outcome":       string(res.Outcome),
		"languages":     res.Languages,
	})

	if res.Hard {
		return p.enqueueTranscode(ctx, msg.AssetID)
	}

	moved, err := p.Store.TransitionStatus(ctx, msg.AssetID,
		[]types.AssetStatus{types.AssetUploading}, types.AssetAwaitCaptionEdit)
	if err != nil {
		return err
	}
	if moved {
		p.publishFor(ctx, asset, events.TypeStatusChanged, map[string]any{
			"status": types.AssetAwaitCaptionEdit.String(),
		})
	}
	return nil
}

// degradeDetection settles a detection job whose retry budget is spent.
// Detection is best effort: rather than strand the asset, the run is recorded
// as inconclusive with no subtitles found and the asset routes on to caption
// editing as usual.
func (p *Pool) degradeDetection(ctx context.Context, logger zerolog.Logger, msg queue.Message, cause error) error {
	logger.Warn().Err(cause).Str("event", "detect.degraded").
		Msg("detection exhausted its retries, recording no subtitles")

	if err := p.Store.SetSubtitleResult(ctx, msg.AssetID, types.SubtitleNone, nil); err != nil {
		return err
	}
	asset, err := p.Store.GetAsset(ctx, msg.AssetID)
	if err != nil {
		return err
	}

	p.publishFor(ctx, asset, events.TypeSubtitleDetected, map[string]any{
		"subtitle_type": types.SubtitleNone.String(),
		"outcome":       string(subtitle.OutcomeInconclusive),
		"languages":     []string(nil),
	})

	moved, err := p.Store.TransitionStatus(ctx, msg.AssetID,
		[]types.AssetStatus{types.AssetUploading}, types.AssetAwaitCaptionEdit)
	if err != nil {
		return err
	}
	if moved {
		p.publishFor(ctx, asset, events.TypeStatusChanged, map[string]any{
			"status": types.AssetAwaitCaptionEdit.String(),
		})
	}
	return nil
}

// enqueueTranscode registers and queues a transcode job for the asset.
func (p *Pool) enqueueTranscode(ctx context.Context, assetID string) error {
	job := &types.Job{ID: uuid.NewString(), AssetID: assetID, Kind: types.JobTranscode}
	if err := p.Store.CreateJob(ctx, job); err != nil {
		return err
	}
	if err := p.Queue.Enqueue(ctx, queue.Message{
		JobID:   job.ID,
		AssetID: assetID,
		Kind:    types.JobTranscode,
	}); err != nil {
		return fmt.Errorf("enqueue follow-up transcode: %w", err)
	}
	return nil
}

// generateCaptions transcribes the audio track and stores an editable draft.
func (p *Pool) generateCaptions(ctx context.Context, msg queue.Message) error {
	asset, err := p.Store.GetAsset(ctx, msg.AssetID)
	if err != nil {
		return err
	}
	sourceAbs, err := fsutil.ConfineRelPath(p.MediaRoot, asset.SourcePath)
	if err != nil {
		return err
	}

	tr, err := p.Captions.Generate(ctx, sourceAbs, msg.Language)
	if err != nil {
		return err
	}
	rel, err := caption.SaveDraft(p.MediaRoot, msg.AssetID, tr.Segments)
	if err != nil {
		return err
	}
	if err := p.Store.SetCaptionDraft(ctx, msg.AssetID, rel, tr.Language); err != nil {
		return err
	}

	p.publishFor(ctx, asset, events.TypeCaptionDraftReady, map[string]any{
		"draft":    rel,
		"language": tr.Language,
		"cues":     len(tr.Segments),
	})

	// Assets captioned straight from upload move on to the editing stage.
	moved, err := p.Store.TransitionStatus(ctx, msg.AssetID,
		[]types.AssetStatus{types.AssetUploading}, types.AssetAwaitCaptionEdit)
	if err != nil {
		return err
	}
	if moved {
		p.publishFor(ctx, asset, events.TypeStatusChanged, map[string]any{
			"status": types.AssetAwaitCaptionEdit.String(),
		})
	}
	return nil
}

// moderateAsset runs the moderation engine with per-message overrides.
func (p *Pool) moderateAsset(ctx context.Context, msg queue.Message) error {
	policy := moderate.Policy{Threshold: msg.Threshold}
	if msg.Level != "" {
		level, err := types.ParseRiskLevel(msg.Level)
		if err != nil {
			return err
		}
		policy.Level = level
	}
	return p.Moderation.Run(ctx, msg.AssetID, policy, msg.Reset)
}

// extractMetadata probes the source and persists its stream properties
// without touching the asset status.
func (p *Pool) extractMetadata(ctx context.Context, msg queue.Message) error {
	asset, err := p.Store.GetAsset(ctx, msg.AssetID)
	if err != nil {
		return err
	}
	sourceAbs, err := fsutil.ConfineRelPath(p.MediaRoot, asset.SourcePath)
	if err != nil {
		return err
	}

	info, err := p.Prober.Probe(ctx, sourceAbs)
	if err != nil {
		return err
	}
	return p.Store.SetTechnicalMetadata(ctx, msg.AssetID, types.TechnicalMetadata{
		Duration:         info.Duration,
		Width:            info.Width,
		Height:           info.Height,
		FrameRate:        info.FrameRate,
		Codec:            info.Codec,
		AudioCodec:       info.AudioCodec,
		AspectRatio:      info.AspectRatio,
		BitrateKbps:      info.BitrateKbps,
		VideoBitrateKbps: info.VideoBitrateKbps,
		AudioBitrateKbps: info.AudioBitrateKbps,
		SizeBytes:        info.SizeBytes,
	})
}

func (p *Pool) publishFor(ctx context.Context, asset *types.Asset, eventType string, data map[string]any) {
	err := p.Events.Publish(ctx, events.Event{
		Type:    eventType,
		AssetID: asset.ID,
		OwnerID: asset.OwnerID,
		Data:    data,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("type", eventType).Msg("event publish failed")
	}
}
