package publish

import (
	"context"
	"testing"
)

func TestMemoryPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := NewMemory()
	id1, err := pub.Publish(context.Background(), "runs", map[string]string{"status": "success"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "runs", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestNoopPublisher(t *testing.T) {
	t.Parallel()

	var pub NoopPublisher
	if _, err := pub.Publish(context.Background(), "runs", nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
