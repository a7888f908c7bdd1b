// SPDX-License-Identifier: MIT

package transcode

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vidforge/pipeline/internal/events"
	"github.com/vidforge/pipeline/internal/fsutil"
	"github.com/vidforge/pipeline/internal/hls"
	"github.com/vidforge/pipeline/internal/log"
	"github.com/vidforge/pipeline/internal/metrics"
	"github.com/vidforge/pipeline/internal/probe"
	"github.com/vidforge/pipeline/internal/types"
)

// Store is the subset of asset persistence the orchestrator needs.
type Store interface {
	GetAsset(ctx context.Context, id string) (*types.Asset, error)
	TransitionStatus(ctx context.Context, id string, from []types.AssetStatus, to types.AssetStatus) (bool, error)
	SetTechnicalMetadata(ctx context.Context, id string, md types.TechnicalMetadata) error
	SetManifestPath(ctx context.Context, id, path string) error
	SetThumbnail(ctx context.Context, id, path string) error
}

// Orchestrator drives one asset through probe, encode, verify and publish.
type Orchestrator struct {
	Store       Store
	Prober      probe.Prober
	Runner      Runner
	Events      events.Publisher
	MediaRoot   string
	SegmentSecs int

	logger zerolog.Logger
}

// New creates an orchestrator.
func New(store Store, prober probe.Prober, runner Runner, pub events.Publisher, mediaRoot string) *Orchestrator {
	return &Orchestrator{
		Store:     store,
		Prober:    prober,
		Runner:    runner,
		Events:    pub,
		MediaRoot: mediaRoot,
		logger:    log.WithComponent("transcode"),
	}
}

// Run transcodes one asset into a verified HLS tree.
//
// The asset is claimed with a conditional status update: only assets in
// uploading or processing may enter. Losing the claim means another worker
// (or an operator) moved the asset on, and the job is silently skipped. The
// claim deliberately admits processing itself so a retried job can resume
// after a crash mid-run.
func (o *Orchestrator) Run(ctx context.Context, assetID string) error {
	logger := o.logger.With().Str("asset_id", assetID).Logger()

	claimed, err := o.Store.TransitionStatus(ctx, assetID,
		[]types.AssetStatus{types.AssetUploading, types.AssetProcessing},
		types.AssetProcessing)
	if err != nil {
		return err
	}
	if !claimed {
		logger.Info().Str("event", "transcode.skipped").Msg("asset not claimable, skipping")
		return nil
	}

	asset, err := o.Store.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}

	sourceAbs, err := fsutil.ConfineRelPath(o.MediaRoot, asset.SourcePath)
	if err != nil {
		return err
	}
	if err := fsutil.IsRegularFile(sourceAbs); err != nil {
		return fmt.Errorf("source file for %s: %w", assetID, err)
	}

	info, err := o.Prober.Probe(ctx, sourceAbs)
	if err != nil {
		return err
	}
	if err := o.Store.SetTechnicalMetadata(ctx, assetID, types.TechnicalMetadata{
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
	}); err != nil {
		return err
	}

	ladder, err := BuildLadder(info.Width, info.Height)
	if err != nil {
		return err
	}
	variants := Variants(ladder)

	outputRel := path.Join("videos", "hls", assetID)
	outputAbs, err := fsutil.ConfineRelPath(o.MediaRoot, outputRel)
	if err != nil {
		return err
	}

	// A previous attempt may have died mid-run. Renditions whose media
	// playlist already verifies are kept; incomplete ones are wiped and
	// re-encoded, so a resume never repeats finished work.
	pending, err := o.pendingRenditions(outputAbs, ladder, variants)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Info().Str("event", "transcode.resumed").Msg("all renditions verified, skipping encode")
	} else {
		if skipped := len(ladder) - len(pending); skipped > 0 {
			logger.Info().
				Str("event", "transcode.resumed").
				Int("skipped", skipped).
				Int("pending", len(pending)).
				Msg("re-encoding incomplete renditions only")
		}
		if err := o.encode(ctx, sourceAbs, outputAbs, pending, info); err != nil {
			return err
		}
		for _, r := range pending {
			metrics.RenditionsEncoded.WithLabelValues(strconv.Itoa(r.Height)).Inc()
		}
	}

	if err := o.finalize(logger, outputAbs, variants); err != nil {
		return err
	}

	if asset.ThumbnailPath == "" {
		if err := o.thumbnail(ctx, logger, assetID, sourceAbs, info.Duration); err != nil {
			// A missing poster frame does not invalidate the playable output.
			logger.Warn().Err(err).Str("event", "transcode.thumbnail_failed").Msg("thumbnail generation failed")
		}
	}

	manifestRel := path.Join(outputRel, "master.m3u8")
	if err := o.Store.SetManifestPath(ctx, assetID, manifestRel); err != nil {
		return err
	}

	moved, err := o.Store.TransitionStatus(ctx, assetID,
		[]types.AssetStatus{types.AssetProcessing}, types.AssetPendingReview)
	if err != nil {
		return err
	}
	if !moved {
		logger.Warn().Str("event", "transcode.finalize_raced").Msg("asset left processing before finalize")
		return nil
	}

	o.publish(ctx, asset, events.TypeTranscodeComplete, map[string]any{
		"manifest":   manifestRel,
		"renditions": len(ladder),
	})
	o.publish(ctx, asset, events.TypeStatusChanged, map[string]any{
		"status": types.AssetPendingReview.String(),
	})

	logger.Info().
		Str("event", "transcode.complete").
		Int("renditions", len(ladder)).
		Msg("transcode finished")
	return nil
}

// pendingRenditions returns the rungs that still need encoding. A rung whose
// media playlist verifies is complete and skipped; an incomplete rung's
// directory is removed so ffmpeg writes it fresh.
func (o *Orchestrator) pendingRenditions(outputAbs string, ladder []Rendition, variants []hls.Variant) ([]Rendition, error) {
	var pending []Rendition
	for i, r := range ladder {
		if hls.VerifyVariant(outputAbs, variants[i]) == nil {
			continue
		}
		if err := os.RemoveAll(filepath.Join(outputAbs, r.Label)); err != nil {
			return nil, fmt.Errorf("remove incomplete rendition %s: %w", r.Label, err)
		}
		pending = append(pending, r)
	}
	return pending, nil
}

// encode runs ffmpeg over the given rungs only.
func (o *Orchestrator) encode(ctx context.Context, sourceAbs, outputAbs string, ladder []Rendition, info *probe.VideoInfo) error {
	for _, r := range ladder {
		if err := fsutil.EnsureDir(filepath.Join(outputAbs, r.Label)); err != nil {
			return err
		}
	}

	spec := EncodeSpec{
		SourcePath:  sourceAbs,
		OutputDir:   outputAbs,
		Ladder:      ladder,
		SourceCodec: info.Codec,
		HasAudio:    info.HasAudio,
		SegmentSecs: o.SegmentSecs,
	}
	return o.Runner.Run(ctx, spec.Args())
}

// finalize writes the master manifest over the full ladder and verifies the
// tree. Verification failure purges everything so the retry starts clean.
func (o *Orchestrator) finalize(logger zerolog.Logger, outputAbs string, variants []hls.Variant) error {
	if err := hls.WriteMaster(outputAbs, variants); err != nil {
		return err
	}
	if err := hls.VerifyTree(outputAbs, variants); err != nil {
		logger.Error().Err(err).Str("event", "transcode.verify_failed").Msg("output tree incomplete, purging")
		if purgeErr := hls.Purge(outputAbs); purgeErr != nil {
			logger.Error().Err(purgeErr).Msg("purge after failed verify")
		}
		return err
	}
	return nil
}

func (o *Orchestrator) thumbnail(ctx context.Context, logger zerolog.Logger, assetID, sourceAbs string, duration float64) error {
	thumbRel := path.Join("videos", "thumbnails", assetID+".jpg")
	thumbAbs, err := fsutil.ConfineRelPath(o.MediaRoot, thumbRel)
	if err != nil {
		return err
	}
	if err := GenerateThumbnail(ctx, o.Runner, sourceAbs, thumbAbs, duration); err != nil {
		return err
	}
	logger.Debug().Str("event", "transcode.thumbnail").Str("path", thumbRel).Msg("thumbnail written")
	return o.Store.SetThumbnail(ctx, assetID, thumbRel)
}

func (o *Orchestrator) publish(ctx context.Context, asset *types.Asset, eventType string, data map[string]any) {
	err := o.Events.Publish(ctx, events.Event{
		Type:    eventType,
		AssetID: asset.ID,
		OwnerID: asset.OwnerID,
		Data:    data,
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("type", eventType).Msg("event publish failed")
	}
}
