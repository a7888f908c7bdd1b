// SPDX-License-Identifier: MIT

package events

import (
	"context"
	"sync"
	"time"
)

// MemoryBus is an in-process Publisher used by tests.
type MemoryBus struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish records the event.
func (b *MemoryBus) Publish(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (b *MemoryBus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// ByType filters recorded events by type.
func (b *MemoryBus) ByType(t string) []Event {
	var out []Event
	for _, ev := range b.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var _ Publisher = (*MemoryBus)(nil)
