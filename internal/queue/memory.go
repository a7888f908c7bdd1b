// SPDX-License-Identifier: MIT

package queue

import "context"

// MemoryQueue is a channel-backed Queue used by tests and single-process
// deployments.
type MemoryQueue struct {
	ch chan Message
}

// NewMemoryQueue creates a queue with the given buffer capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 128
	}
	return &MemoryQueue{ch: make(chan Message, capacity)}
}

// Enqueue appends a message, blocking when the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a message arrives or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Message, error) {
	select {
	case msg := <-q.ch:
		return &msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ Queue = (*MemoryQueue)(nil)
