package logs

import (
	"fmt"
	"testing"
	"time"

	"github.com/panelkit/devpanel/internal/models"
)

func entry(service, msg string) models.LogEntry {
	return models.LogEntry{
		Timestamp: time.Now().UTC(),
		ServiceID: service,
		Level:     "info",
		Message:   msg,
	}
}

func TestPublishSubscribe(t *testing.T) {
	h := NewHub()

	id, ch := h.Subscribe("backend")
	defer h.Unsubscribe("backend", id)

	h.Publish(entry("backend", "hello"))

	select {
	case got := <-ch:
		if got.Message != "hello" {
			t.Errorf("Expected hello, got %s", got.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for entry")
	}
}

func TestSubscriberIsolationByService(t *testing.T) {
	h := NewHub()

	id, ch := h.Subscribe("backend")
	defer h.Unsubscribe("backend", id)

	h.Publish(entry("dashboard", "other service"))

	select {
	case got := <-ch:
		t.Errorf("Expected no delivery, got %s", got.Message)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoDeliveryBeforeSubscribe(t *testing.T) {
	h := NewHub()

	h.Publish(entry("backend", "before"))

	id, ch := h.Subscribe("backend")
	defer h.Unsubscribe("backend", id)

	h.Publish(entry("backend", "after"))

	got := <-ch
	if got.Message != "after" {
		t.Errorf("Expected only post-subscription entry, got %s", got.Message)
	}
	select {
	case extra := <-ch:
		t.Errorf("Unexpected extra entry: %s", extra.Message)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	h := NewHub()

	id, ch := h.Subscribe("backend")
	defer h.Unsubscribe("backend", id)

	// Overfill without reading: the earliest entries must be shed
	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(entry("backend", fmt.Sprintf("line %d", i)))
	}

	first := <-ch
	if first.Message == "line 0" {
		t.Error("Expected oldest entries to be dropped for the lagging subscriber")
	}

	// Channel still holds a full buffer of the newest entries
	count := 1
	for {
		select {
		case <-ch:
			count++
			continue
		default:
		}
		break
	}
	if count != subscriberBuffer {
		t.Errorf("Expected %d buffered entries, got %d", subscriberBuffer, count)
	}
}

func TestSlowSubscriberDoesNotAffectPeers(t *testing.T) {
	h := NewHub()

	slowID, _ := h.Subscribe("backend")
	defer h.Unsubscribe("backend", slowID)
	fastID, fast := h.Subscribe("backend")
	defer h.Unsubscribe("backend", fastID)

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(entry("backend", fmt.Sprintf("line %d", i)))
		// Fast subscriber keeps up
		select {
		case got := <-fast:
			if got.Message != fmt.Sprintf("line %d", i) {
				t.Fatalf("Fast subscriber lost order at %d: %s", i, got.Message)
			}
		case <-time.After(time.Second):
			t.Fatal("Fast subscriber starved")
		}
	}
}

func TestSubscribeAll(t *testing.T) {
	h := NewHub()

	id, ch := h.SubscribeAll()
	defer h.UnsubscribeAll(id)

	h.Publish(entry("backend", "from backend"))
	h.Publish(entry("dashboard", "from dashboard"))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case got := <-ch:
			seen[got.ServiceID] = true
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for merged entries")
		}
	}
	if !seen["backend"] || !seen["dashboard"] {
		t.Errorf("Expected entries from both services, got %v", seen)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()

	id, ch := h.Subscribe("backend")
	h.Unsubscribe("backend", id)

	if _, ok := <-ch; ok {
		t.Error("Expected channel closed after unsubscribe")
	}
	if h.SubscriberCount("backend") != 0 {
		t.Errorf("Expected 0 subscribers, got %d", h.SubscriberCount("backend"))
	}

	// Publishing after unsubscribe must not panic
	h.Publish(entry("backend", "into the void"))
}
