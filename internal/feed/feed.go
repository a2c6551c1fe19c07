// Package feed provides a latest-value-wins delivery channel: a multi-consumer
// fan-out where a new emission supersedes an unread predecessor. Consumers
// render "current state", not an event log, so a slow consumer only ever sees
// the newest value and Publish never blocks.
package feed

import "sync"

// Feed is a latest-value-wins fan-out for values of type T.
// The zero value is not usable; use New.
type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	last   T
	seeded bool
	closed bool
}

// New creates an empty feed.
func New[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Publish stores v as the latest value and delivers it to every subscriber,
// replacing any unread predecessor. Never blocks.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.last = v
	f.seeded = true
	for _, ch := range f.subs {
		// Drop the unread predecessor, then deliver.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Latest returns the most recently published value, if any.
func (f *Feed[T]) Latest() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.seeded
}

// Subscribe registers a new consumer. The subscription channel is primed with
// the latest value when one exists, so late subscribers start from current
// state. Subscribing to a closed feed yields an already-closed channel.
func (f *Feed[T]) Subscribe() *Subscription[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan T, 1)
	if f.seeded {
		ch <- f.last
	}
	if f.closed {
		close(ch)
		return &Subscription[T]{ch: ch}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	return &Subscription[T]{feed: f, id: id, ch: ch}
}

// Close closes every subscription channel and rejects further publishes.
// Idempotent.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = make(map[int]chan T)
}

// Subscription is a single consumer's view of a feed.
type Subscription[T any] struct {
	feed *Feed[T]
	id   int
	ch   chan T
}

// C returns the receive channel. It carries at most one pending value: the
// newest emission since the last receive. Closed when the feed closes or the
// subscription is canceled.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Cancel detaches the subscription and closes its channel. Idempotent, and
// safe after the feed itself has closed.
func (s *Subscription[T]) Cancel() {
	if s.feed == nil {
		return
	}
	s.feed.mu.Lock()
	ch, ok := s.feed.subs[s.id]
	if ok {
		delete(s.feed.subs, s.id)
	}
	s.feed.mu.Unlock()
	if ok {
		close(ch)
	}
}
