// Package publish emits run-outcome notifications for downstream consumers
// (dashboards, phone notifications, automation).
package publish

import (
	"context"
	"fmt"
	"sync"
)

// Publisher delivers a JSON-serializable payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
	Close() error
}

// NoopPublisher drops every message. Used when notifications are disabled.
type NoopPublisher struct{}

// Publish discards the payload.
func (NoopPublisher) Publish(context.Context, string, any) (string, error) {
	return "noop", nil
}

// Close does nothing.
func (NoopPublisher) Close() error { return nil }

// MemoryPublisher stores published payloads for inspection in tests.
type MemoryPublisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// NewMemory returns a MemoryPublisher.
func NewMemory() *MemoryPublisher { return &MemoryPublisher{} }

// Publish records the message and returns a pseudo ID.
func (p *MemoryPublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a copy of the recorded publishes.
func (p *MemoryPublisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Close does nothing.
func (*MemoryPublisher) Close() error { return nil }
