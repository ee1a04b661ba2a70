package conversation

import (
	"log"
	"sync"
	"time"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

const subscriberBuffer = 64

// Broadcaster fans session events out to subscribers. Slow subscribers drop events.
type Broadcaster struct {
	sessionID string

	mu     sync.Mutex
	subs   map[int]chan models.StreamEvent
	nextID int
	closed bool
}

// NewBroadcaster creates a broadcaster tagging events with sessionID
func NewBroadcaster(sessionID string) *Broadcaster {
	return &Broadcaster{
		sessionID: sessionID,
		subs:      make(map[int]chan models.StreamEvent),
	}
}

// Subscribe returns an event channel and a function that releases it
func (b *Broadcaster) Subscribe() (<-chan models.StreamEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.StreamEvent, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish sends an event to every subscriber without blocking
func (b *Broadcaster) Publish(eventType string, data interface{}) {
	ev := models.StreamEvent{
		EventType: eventType,
		SessionID: b.sessionID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf(`{"level":"warn","message":"Dropping event for slow subscriber","session_id":"%s","subscriber":%d,"event_type":"%s"}`,
				b.sessionID, id, eventType)
		}
	}
}

// Close releases all subscribers; later subscriptions receive a closed channel
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
