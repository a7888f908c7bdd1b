// SPDX-License-Identifier: MIT

// Package worker runs the job consumer pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vidforge/pipeline/internal/caption"
	"github.com/vidforge/pipeline/internal/events"
	"github.com/vidforge/pipeline/internal/lock"
	"github.com/vidforge/pipeline/internal/log"
	"github.com/vidforge/pipeline/internal/metrics"
	"github.com/vidforge/pipeline/internal/moderate"
	"github.com/vidforge/pipeline/internal/pipeline"
	"github.com/vidforge/pipeline/internal/probe"
	"github.com/vidforge/pipeline/internal/queue"
	"github.com/vidforge/pipeline/internal/store"
	"github.com/vidforge/pipeline/internal/subtitle"
	"github.com/vidforge/pipeline/internal/transcode"
	"github.com/vidforge/pipeline/internal/types"
)

// retryPolicies maps each job kind to its bounded retry budget.
var retryPolicies = map[types.JobKind]pipeline.RetryPolicy{
	types.JobTranscode:        {MaxRetries: 3, Delay: 5 * time.Second},
	types.JobDetectSubtitle:   {MaxRetries: 2, Delay: 3 * time.Second},
	types.JobGenerateCaptions: {MaxRetries: 1, Delay: 5 * time.Second},
	types.JobModerate:         {MaxRetries: 2, Delay: 5 * time.Second},
	types.JobExtractMetadata:  {MaxRetries: 2, Delay: time.Second},
}

// Pool consumes job messages and dispatches them to the pipeline stages.
type Pool struct {
	Store      *store.Store
	Lock       lock.Lock
	Queue      queue.Queue
	Events     events.Publisher
	Prober     probe.Prober
	Transcoder *transcode.Orchestrator
	Detector   *subtitle.Detector
	Captions   *caption.Generator
	Moderation *moderate.Engine

	MediaRoot string
	LockTTL   time.Duration
	Workers   int

	// Sleeper paces retry backoff; tests replace it.
	Sleeper pipeline.Sleeper

	logger zerolog.Logger
}

// NewPool wires a pool. Zero Workers defaults to 4.
func NewPool(deps Pool) *Pool {
	p := deps
	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.LockTTL <= 0 {
		p.LockTTL = 2 * time.Hour
	}
	p.logger = log.WithComponent("worker")
	return &p
}

// Run consumes jobs until ctx is canceled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.Workers; i++ {
		g.Go(func() error {
			return p.consume(ctx)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) consume(ctx context.Context) error {
	for {
		msg, err := p.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error().Err(err).Msg("dequeue failed")
			continue
		}
		p.Process(ctx, *msg)
	}
}

// Process executes one job message end to end: claim the job row, take the
// per-asset lock, run the stage under its retry budget and record the
// outcome. Lock contention is a skip, not a failure.
func (p *Pool) Process(ctx context.Context, msg queue.Message) {
	ctx = log.ContextWithJobID(ctx, msg.JobID)
	ctx = log.ContextWithAssetID(ctx, msg.AssetID)
	logger := p.logger.With().
		Str("job_id", msg.JobID).
		Str("asset_id", msg.AssetID).
		Str("kind", msg.Kind.String()).
		Logger()
	started := time.Now()

	if err := p.Store.MarkJobRunning(ctx, msg.JobID); err != nil {
		logger.Error().Err(err).Msg("claiming job")
		return
	}

	acquired, err := p.Lock.Acquire(ctx, msg.AssetID, p.LockTTL)
	if err != nil {
		p.finish(ctx, logger, msg, started, err)
		return
	}
	if !acquired {
		metrics.LockContention.Inc()
		logger.Info().Str("event", "job.skipped").Msg("asset locked elsewhere, skipping")
		if err := p.Store.MarkJobSuccess(ctx, msg.JobID); err != nil {
			logger.Error().Err(err).Msg("recording skipped job")
		}
		metrics.JobsTotal.WithLabelValues(msg.Kind.String(), "skipped").Inc()
		return
	}
	defer func() {
		if err := p.Lock.Release(context.WithoutCancel(ctx), msg.AssetID); err != nil {
			logger.Error().Err(err).Msg("releasing asset lock")
		}
	}()

	policy, ok := retryPolicies[msg.Kind]
	if !ok {
		p.finish(ctx, logger, msg, started, fmt.Errorf("unknown job kind %q", msg.Kind))
		return
	}

	err = policy.RetryWith(ctx, msg.Kind.String(), func(ctx context.Context) error {
		return p.dispatch(ctx, msg)
	}, p.Sleeper)
	if err != nil && msg.Kind == types.JobDetectSubtitle {
		err = p.degradeDetection(ctx, logger, msg, err)
	}
	p.finish(ctx, logger, msg, started, err)
}

func (p *Pool) dispatch(ctx context.Context, msg queue.Message) error {
	switch msg.Kind {
	case types.JobTranscode:
		return p.Transcoder.Run(ctx, msg.AssetID)
	case types.JobDetectSubtitle:
		return p.detectSubtitles(ctx, msg)
	case types.JobGenerateCaptions:
		return p.generateCaptions(ctx, msg)
	case types.JobModerate:
		return p.moderateAsset(ctx, msg)
	case types.JobExtractMetadata:
		return p.extractMetadata(ctx, msg)
	default:
		return fmt.Errorf("unknown job kind %q", msg.Kind)
	}
}

func (p *Pool) finish(ctx context.Context, logger zerolog.Logger, msg queue.Message, started time.Time, err error) {
	// Bookkeeping must survive a canceled job context.
	ctx = context.WithoutCancel(ctx)
	metrics.JobDuration.WithLabelValues(msg.Kind.String()).Observe(time.Since(started).Seconds())

	if err == nil {
		if markErr := p.Store.MarkJobSuccess(ctx, msg.JobID); markErr != nil {
			logger.Error().Err(markErr).Msg("recording job success")
		}
		metrics.JobsTotal.WithLabelValues(msg.Kind.String(), "success").Inc()
		logger.Info().Str("event", "job.success").Dur("elapsed", time.Since(started)).Msg("job finished")
		return
	}

	if markErr := p.Store.MarkJobFailure(ctx, msg.JobID, err.Error()); markErr != nil {
		logger.Error().Err(markErr).Msg("recording job failure")
	}
	metrics.JobsTotal.WithLabelValues(msg.Kind.String(), "failure").Inc()
	logger.Error().Err(err).Str("event", "job.failure").Msg("job failed")

	// A transcode that exhausted its budget leaves the asset unusable.
	if msg.Kind == types.JobTranscode {
		if _, terr := p.Store.TransitionStatus(ctx, msg.AssetID,
			[]types.AssetStatus{types.AssetUploading, types.AssetProcessing},
			types.AssetFailed); terr != nil {
			logger.Error().Err(terr).Msg("marking asset failed")
		}
	}

	// Moderation records stay open across retries; seal one only when the
	// budget is spent.
	if msg.Kind == types.JobModerate {
		if ferr := p.Store.FailModeration(ctx, msg.AssetID, err.Error()); ferr != nil && !errors.Is(ferr, pipeline.ErrNotFound) {
			logger.Error().Err(ferr).Msg("recording moderation failure")
		}
	}

	if asset, getErr := p.Store.GetAsset(ctx, msg.AssetID); getErr == nil {
		pubErr := p.Events.Publish(ctx, events.Event{
			Type:    events.TypeJobFailed,
			AssetID: msg.AssetID,
			OwnerID: asset.OwnerID,
			Data:    map[string]any{"kind": msg.Kind.String(), "error": err.Error()},
		})
		if pubErr != nil {
			logger.Warn().Err(pubErr).Msg("event publish failed")
		}
	}
}
