// SPDX-License-Identifier: MIT

// Package events publishes pipeline state changes to interested clients.
//
// Events fan out over Redis pub/sub on per-user channels; the frontend
// gateway bridges them to websockets. Publishing is best effort: a lost
// event never fails the job that produced it, callers log and move on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vidforge/pipeline/internal/metrics"
)

// Event types emitted by the pipeline.
const (
	TypeStatusChanged      = "asset.status_changed"
	TypeTranscodeComplete  = "asset.transcode_complete"
	TypeSubtitleDetected   = "asset.subtitle_detected"
	TypeCaptionDraftReady  = "asset.caption_draft_ready"
	TypeModerationProgress = "moderation.progress"
	TypeModerationComplete = "moderation.complete"
	TypeJobFailed          = "job.failed"
)

// Event is one notification destined for an asset owner.
type Event struct {
	Type    string         `json:"type"`
	AssetID string         `json:"asset_id"`
	OwnerID string         `json:"owner_id"`
	At      time.Time      `json:"at"`
	Data    map[string]any `json:"data,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// channelFor builds the per-user notification channel name.
func channelFor(ownerID string) string {
	return "notify:user:" + ownerID
}

// RedisPublisher publishes events as JSON over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisPublisher creates a publisher on an existing client.
func NewRedisPublisher(client *redis.Client, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

// Publish sends the event to the owner's channel.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.Type, err)
	}
	if err := p.client.Publish(ctx, channelFor(ev.OwnerID), payload).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Type, err)
	}
	metrics.EventsPublished.WithLabelValues(ev.Type).Inc()
	p.logger.Debug().
		Str("event", "events.published").
		Str("type", ev.Type).
		Str("asset_id", ev.AssetID).
		Msg("event published")
	return nil
}

var _ Publisher = (*RedisPublisher)(nil)
