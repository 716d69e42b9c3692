package browser

import (
	"context"
	"net/http"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

func TestNewManagerDefaultsAndClose(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{}, nil)
	if m.cfg.NavTimeout != 45*time.Second {
		t.Fatalf("expected default nav timeout, got %v", m.cfg.NavTimeout)
	}
	if m.limiter != nil {
		t.Fatal("limiter should be nil when NavQPS is zero")
	}

	// Close before launch must not panic and must stick.
	m.Close()
	m.Close()
	if _, err := m.ensureAllocator(); err == nil {
		t.Fatal("expected error from closed manager")
	}
}

func TestNewManagerThrottleEnabled(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{NavQPS: 2}, nil)
	defer m.Close()
	if m.limiter == nil {
		t.Fatal("expected limiter when NavQPS > 0")
	}
}

// Deliberately not parallel: goroutine counting needs a quiet runtime.
func TestForwardCancelStopsForwardingGoroutine(t *testing.T) {
	var fired int32
	cancel := func() { atomic.AddInt32(&fired, 1) }

	before := runtime.NumGoroutine()

	// Long-lived parent standing in for the serve context: many tabs come
	// and go underneath it, and each finished tab must release its
	// forwarding goroutine instead of parking on the parent.
	parent := context.Background()
	stops := make([]func(), 0, 50)
	for i := 0; i < 50; i++ {
		stops = append(stops, forwardCancel(parent, cancel))
	}
	for _, stop := range stops {
		stop()
		stop() // second call must be a no-op
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := runtime.NumGoroutine(); n > before {
		t.Fatalf("%d goroutines still running after stop, started with %d", n, before)
	}
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("cancel fired %d times without parent cancellation", got)
	}
}

func TestForwardCancelPropagatesParentCancellation(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	fired := make(chan struct{})
	stop := forwardCancel(parent, func() { close(fired) })
	defer stop()

	cancelParent()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("parent cancellation was not forwarded to the tab")
	}
}

func TestForwardCancelNilParent(t *testing.T) {
	t.Parallel()

	stop := forwardCancel(nil, func() { t.Fatal("cancel must not fire") })
	stop()
	stop()
}

func TestCloneHeaderAndNetworkHeaders(t *testing.T) {
	t.Parallel()

	src := http.Header{"X-Test": {"a", "b"}}
	cloned := cloneHeader(src)
	cloned.Add("X-Test", "c")
	if len(src["X-Test"]) != 2 {
		t.Fatalf("source header mutated: %+v", src)
	}

	netHeaders := toNetworkHeaders(src)
	switch v := netHeaders["X-Test"].(type) {
	case []string:
		if len(v) != 2 {
			t.Fatalf("expected two entries, got %v", v)
		}
	default:
		t.Fatalf("expected []string, got %T", v)
	}
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  204,
			URL:     "https://paper.example.com/archive",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	if status != 204 || headers.Get("X-Request-ID") != "abc" || url != "https://paper.example.com/archive" {
		t.Fatalf("unexpected snapshot values: status=%d headers=%v url=%s", status, headers, url)
	}

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	if status != http.StatusOK || url != "https://final" {
		t.Fatalf("expected fallback values, got status=%d url=%s", status, url)
	}
}
