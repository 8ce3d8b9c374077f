package livecache

import (
	"sync"
)

// Subscription receives state snapshots from one context.
//
// Delivery keeps only the newest undelivered snapshot: a slow reader skips
// intermediate states but always observes the latest one.
type Subscription[S any] struct {
	id      int64
	updates chan S
	hub     *hub[S]
	once    sync.Once
}

// Updates returns the snapshot channel. It is closed when the subscription or its
// context is closed.
func (s *Subscription[S]) Updates() <-chan S {
	return s.updates
}

// Close detaches the subscription. Closing twice is a no-op.
func (s *Subscription[S]) Close() {
	s.hub.unsubscribe(s.id)
}

// offer delivers value, evicting one queued value when the buffer is full.
// Callers hold hub.mu, so offer has a single sender.
func (s *Subscription[S]) offer(value S) {
	select {
	case s.updates <- value:
		return
	default:
	}

	select {
	case <-s.updates:
	default:
	}

	select {
	case s.updates <- value:
	default:
	}
}

func (s *Subscription[S]) signalClose() {
	s.once.Do(func() {
		close(s.updates)
	})
}

// hub fans published snapshots out to subscribers.
type hub[S any] struct {
	mu            sync.Mutex
	nextID        int64
	closed        bool
	latest        S
	subscriptions map[int64]*Subscription[S]
}

func newHub[S any](initial S) *hub[S] {
	return &hub[S]{
		latest:        initial,
		subscriptions: make(map[int64]*Subscription[S]),
	}
}

// subscribe registers a subscriber and hands it the latest snapshot first.
func (h *hub[S]) subscribe() *Subscription[S] {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription[S]{
		id:      h.nextID,
		updates: make(chan S, 1),
		hub:     h,
	}
	if h.closed {
		sub.signalClose()
		return sub
	}

	h.subscriptions[sub.id] = sub
	sub.offer(h.latest)

	return sub
}

// publish records value as latest and offers it to every subscriber.
func (h *hub[S]) publish(value S) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = value
	for _, sub := range h.subscriptions {
		sub.offer(value)
	}
}

func (h *hub[S]) unsubscribe(id int64) {
	h.mu.Lock()
	sub, found := h.subscriptions[id]
	if found {
		delete(h.subscriptions, id)
	}
	h.mu.Unlock()

	if found {
		sub.signalClose()
	}
}

// close closes every subscription and rejects later publishes.
func (h *hub[S]) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription[S], 0, len(h.subscriptions))
	for _, sub := range h.subscriptions {
		subs = append(subs, sub)
	}
	h.subscriptions = make(map[int64]*Subscription[S])
	h.mu.Unlock()

	for _, sub := range subs {
		sub.signalClose()
	}
}

func (h *hub[S]) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscriptions)
}
