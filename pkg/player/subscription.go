package player

import "sync"

const eventBufferSize = 16

// Event is a lifecycle announcement from the coordinator
type Event int

const (
	// AudioStarted is emitted when playback actually starts
	AudioStarted Event = iota
	// AudioStopped is emitted when playback actually stops
	AudioStopped
)

// String returns the event name
func (e Event) String() string {
	switch e {
	case AudioStarted:
		return "audio_started"
	case AudioStopped:
		return "audio_stopped"
	default:
		return "unknown"
	}
}

// Subscription provides event channels for a single subscriber
type Subscription struct {
	Events <-chan Event
	Done   <-chan struct{}

	eventCh chan Event
	doneCh  chan struct{}
}

// newSubscription creates a new subscription with a buffered event channel
func newSubscription() *Subscription {
	s := &Subscription{
		eventCh: make(chan Event, eventBufferSize),
		doneCh:  make(chan struct{}),
	}
	s.Events = s.eventCh
	s.Done = s.doneCh
	return s
}

// send delivers an event without blocking; slow subscribers drop events
func (s *Subscription) send(e Event) {
	select {
	case s.eventCh <- e:
	default:
		// Drop if buffer full
	}
}

// Broadcaster fans lifecycle events out to subscribers.
// Emission is fire-and-forget; a subscriber that stops draining its
// channel never blocks the coordinator.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := newSubscription()
	if b.closed {
		close(s.doneCh)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes a subscriber and signals its Done channel
func (b *Broadcaster) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.doneCh)
}

// Emit delivers an event to all current subscribers
func (b *Broadcaster) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for s := range b.subs {
		s.send(e)
	}
}

// Close signals all subscribers to stop and rejects further emissions
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.doneCh)
		delete(b.subs, s)
	}
}
