// Package events broadcasts cart notifications to in-process listeners such as
// the server-sent event stream behind storefront badges.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scoopshop-backend/pkg/enums"
)

const defaultBuffer = 32

// Event is the envelope delivered to subscribers.
type Event struct {
	ID         string              `json:"id"`
	Type       enums.CartEventType `json:"type"`
	SessionID  string              `json:"sessionId"`
	OccurredAt time.Time           `json:"occurredAt"`
	Data       any                 `json:"data,omitempty"`
}

// Filter selects which events a subscriber receives. A nil filter receives all.
type Filter func(Event) bool

// ForSession returns a filter matching a single cart session.
func ForSession(sessionID string) Filter {
	return func(e Event) bool {
		return e.SessionID == sessionID
	}
}

// DropObserver is notified when a slow subscriber misses an event.
type DropObserver interface {
	IncDroppedEvent(eventType string)
}

type subscription struct {
	ch     chan Event
	filter Filter
}

// Bus fans events out to subscribers without ever blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[<-chan Event]*subscription
	buffer int
	drops  DropObserver
	closed bool
}

// NewBus creates a bus whose subscriber channels hold up to buffer events.
func NewBus(buffer int, drops DropObserver) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		subs:   make(map[<-chan Event]*subscription),
		buffer: buffer,
		drops:  drops,
	}
}

// Subscribe registers a listener. The returned channel is closed by
// Unsubscribe or Close.
func (b *Bus) Subscribe(filter Filter) <-chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = &subscription{ch: ch, filter: filter}
	return ch
}

// Unsubscribe removes the listener and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	if ch == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[ch]
	if !ok {
		return
	}
	delete(b.subs, ch)
	close(sub.ch)
}

// Publish stamps the event and delivers it to every matching subscriber that
// has room. Full subscribers miss the event.
func (b *Bus) Publish(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			if b.drops != nil {
				b.drops.IncDroppedEvent(event.Type.String())
			}
		}
	}
	return event
}

// Subscribers returns the current listener count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unsubscribes everyone. Later subscriptions receive a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for key, sub := range b.subs {
		delete(b.subs, key)
		close(sub.ch)
	}
}
