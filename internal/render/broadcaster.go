package render

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventKind labels a broadcast event.
type EventKind string

const (
	EventReady  EventKind = "ready"
	EventUpdate EventKind = "update"
)

// Event is the envelope pushed to stream subscribers.
type Event struct {
	Kind   EventKind      `json:"kind"`
	Ready  *ReadyPayload  `json:"ready,omitempty"`
	Update *UpdatePayload `json:"update,omitempty"`
}

const subscriberBuffer = 32

// Broadcaster fans payloads out to stream subscribers. Sends never block;
// a subscriber that falls behind loses events instead of stalling trackers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]chan Event
	logger zerolog.Logger
}

// NewBroadcaster builds an empty subscriber hub.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[uuid.UUID]chan Event),
		logger: logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Subscribe registers a new consumer and returns its id, event channel and
// a cancel func that must be called when the consumer goes away.
func (b *Broadcaster) Subscribe() (uuid.UUID, <-chan Event, func()) {
	id := uuid.New()
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	b.logger.Debug().Str("subscriber", id.String()).Msg("subscribed")

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return id, ch, cancel
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Ready broadcasts an initialisation payload.
func (b *Broadcaster) Ready(p ReadyPayload) {
	b.publish(Event{Kind: EventReady, Ready: &p})
}

// Update broadcasts a tick payload.
func (b *Broadcaster) Update(p UpdatePayload) {
	b.publish(Event{Kind: EventUpdate, Update: &p})
}

func (b *Broadcaster) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug().Str("subscriber", id.String()).Msg("subscriber buffer full, event dropped")
		}
	}
}

var _ Renderer = (*Broadcaster)(nil)
