package events

import (
	"sync"
)

// DefaultBufferSize is used when a subscriber asks for a non-positive buffer.
const DefaultBufferSize = 256

// Publisher is the side of the bus the workflow engine depends on.
type Publisher interface {
	Publish(topic string, event Event)
}

// EventBus is a channel-based pub-sub event bus.
// Supports topic-based subscriptions and SubscribeAll for cross-topic consumption.
// Delivery is best effort: a full subscriber misses events rather than stalling the publisher.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event // topic -> subscriber channels
	allSubs []chan Event            // channels subscribed to all topics
	closed  bool

	dropMu  sync.Mutex
	dropped map[<-chan Event]int // events lost per subscriber because its buffer was full
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs:    make(map[string][]chan Event),
		dropped: make(map[<-chan Event]int),
	}
}

// Subscribe creates a subscription to a specific topic.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	ch := make(chan Event, bufferSize(bufSize))

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// SubscribeAll creates a subscription to ALL topics.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	ch := make(chan Event, bufferSize(bufSize))

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	b.allSubs = append(b.allSubs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription. Unknown channels are ignored.
func (b *EventBus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for topic, channels := range b.subs {
		if kept, ch := without(channels, sub); ch != nil {
			b.subs[topic] = kept
			close(ch)
			b.forget(sub)
			return
		}
	}
	if kept, ch := without(b.allSubs, sub); ch != nil {
		b.allSubs = kept
		close(ch)
		b.forget(sub)
	}
}

func (b *EventBus) forget(sub <-chan Event) {
	b.dropMu.Lock()
	delete(b.dropped, sub)
	b.dropMu.Unlock()
}

// Publish sends an event to all subscribers of the given topic and to all
// SubscribeAll channels. Never blocks.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	var full []<-chan Event
	for _, ch := range b.subs[topic] {
		if !trySend(ch, event) {
			full = append(full, ch)
		}
	}
	for _, ch := range b.allSubs {
		if !trySend(ch, event) {
			full = append(full, ch)
		}
	}

	if len(full) > 0 {
		b.dropMu.Lock()
		for _, ch := range full {
			b.dropped[ch]++
		}
		b.dropMu.Unlock()
	}
}

// Dropped returns how many events the given subscriber missed.
func (b *EventBus) Dropped(sub <-chan Event) int {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropped[sub]
}

// Close closes the event bus and all subscriber channels.
// Safe to call multiple times.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}

func bufferSize(n int) int {
	if n <= 0 {
		return DefaultBufferSize
	}
	return n
}

func trySend(ch chan Event, event Event) bool {
	select {
	case ch <- event:
		return true
	default:
		return false
	}
}

func without(channels []chan Event, sub <-chan Event) ([]chan Event, chan Event) {
	for i, ch := range channels {
		if (<-chan Event)(ch) == sub {
			kept := append(channels[:i:i], channels[i+1:]...)
			return kept, ch
		}
	}
	return channels, nil
}
