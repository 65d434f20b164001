package logs

import (
	"sync"

	"github.com/google/uuid"

	"github.com/panelkit/devpanel/internal/models"
)

// subscriberBuffer bounds how far one subscriber may fall behind before
// it starts losing its oldest unread entries.
const subscriberBuffer = 1000

// Hub fans log entries out to live subscribers. Subscriptions are
// per-service or across all services; a subscriber only sees entries
// published after it subscribed. Lag is per-subscriber: a slow reader
// loses its own oldest entries and never blocks the publisher or its
// peers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan models.LogEntry // service id -> subscriber id -> channel
	all  map[string]chan models.LogEntry            // subscribers to every service
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[string]chan models.LogEntry),
		all:  make(map[string]chan models.LogEntry),
	}
}

// Publish delivers an entry to every subscriber of its service and to
// every all-services subscriber. Never blocks: a full subscriber channel
// sheds its oldest entry to make room.
func (h *Hub) Publish(entry models.LogEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[entry.ServiceID] {
		offer(ch, entry)
	}
	for _, ch := range h.all {
		offer(ch, entry)
	}
}

// offer sends without blocking, dropping the channel's oldest entry if
// it is full. The second send can still miss if a reader races in
// between; losing the newest instead of the oldest is acceptable there.
func offer(ch chan models.LogEntry, entry models.LogEntry) {
	select {
	case ch <- entry:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- entry:
	default:
	}
}

// Subscribe registers a subscriber for one service and returns its id
// and receive channel. The channel is closed on Unsubscribe.
func (h *Hub) Subscribe(serviceID string) (string, <-chan models.LogEntry) {
	id := uuid.New().String()
	ch := make(chan models.LogEntry, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[serviceID] == nil {
		h.subs[serviceID] = make(map[string]chan models.LogEntry)
	}
	h.subs[serviceID][id] = ch
	return id, ch
}

// SubscribeAll registers a subscriber that receives the merged stream
// of every service.
func (h *Hub) SubscribeAll() (string, <-chan models.LogEntry) {
	id := uuid.New().String()
	ch := make(chan models.LogEntry, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[id] = ch
	return id, ch
}

// Unsubscribe removes a per-service subscriber and closes its channel.
func (h *Hub) Unsubscribe(serviceID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[serviceID]
	if subs == nil {
		return
	}
	if ch, ok := subs[subID]; ok {
		delete(subs, subID)
		close(ch)
	}
	if len(subs) == 0 {
		delete(h.subs, serviceID)
	}
}

// UnsubscribeAll removes an all-services subscriber and closes its channel.
func (h *Hub) UnsubscribeAll(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.all[subID]; ok {
		delete(h.all, subID)
		close(ch)
	}
}

// SubscriberCount reports how many subscribers one service has, not
// counting all-services subscribers.
func (h *Hub) SubscriberCount(serviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[serviceID])
}
