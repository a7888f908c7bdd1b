// SPDX-License-Identifier: MIT

// Package queue carries job messages between the API and the worker pool.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidforge/pipeline/internal/types"
)

// jobsKey is the Redis list backing the queue.
const jobsKey = "pipeline:jobs"

// Message is one unit of work handed to the pool.
type Message struct {
	JobID   string        `json:"job_id"`
	AssetID string        `json:"asset_id"`
	Kind    types.JobKind `json:"kind"`

	// Moderation overrides, zero-valued for other kinds.
	Level     string  `json:"level,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Reset     bool    `json:"reset,omitempty"`

	// Language forces the transcription language of a caption job.
	Language string `json:"language,omitempty"`
}

// Queue is a FIFO job transport.
type Queue interface {
	// Enqueue appends a message.
	Enqueue(ctx context.Context, msg Message) error

	// Dequeue blocks until a message arrives or ctx is done.
	Dequeue(ctx context.Context) (*Message, error)
}

// RedisQueue is the Redis-list-backed Queue.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a queue on an existing client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Enqueue pushes the message onto the list.
func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode job message: %w", err)
	}
	if err := q.client.LPush(ctx, jobsKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", msg.JobID, err)
	}
	return nil
}

// Dequeue pops the oldest message. The blocking pop uses a short timeout in
// a loop so context cancellation is honored within a second.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Message, error) {
	for {
		res, err := q.client.BRPop(ctx, time.Second, jobsKey).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dequeue job: %w", err)
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return nil, fmt.Errorf("decode job message: %w", err)
		}
		return &msg, nil
	}
}

var _ Queue = (*RedisQueue)(nil)
