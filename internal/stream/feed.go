// Package stream provides the in-process event plumbing for the sync
// engine: a hot shared fan-out feed plus the timing operators the typed
// category pipelines compose over it (adaptive batching, throttling,
// distinct-until-changed, per-key expiring windows).
//
// Every operator is a single goroutine owning its own state; waits are
// expressed as timers, never as blocking sleeps, and cancellation stops
// all timers before the cancel call returns.
package stream

import (
	"log"
	"sync"

	"github.com/relaychat/sync-engine/internal/metrics"
)

// CancelFunc tears down one subscription or operator. It is safe to call
// more than once; the first call does the work.
type CancelFunc func()

// DefaultSubscriberBuffer is the per-subscriber channel depth for feeds.
const DefaultSubscriberBuffer = 256

// Feed is a hot shared broadcast channel: one producer, any number of
// subscribers. Publishing never replays history to late subscribers and
// never blocks the producer — a subscriber whose buffer is full has the
// item dropped (and counted) rather than stalling every other consumer.
type Feed[T any] struct {
	name   string
	buffer int

	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

// NewFeed creates an empty feed. The name labels overflow metrics and logs.
func NewFeed[T any](name string) *Feed[T] {
	return &Feed[T]{
		name:   name,
		buffer: DefaultSubscriberBuffer,
		subs:   make(map[int]chan T),
	}
}

// Subscribe attaches a new consumer and returns its channel together with
// a cancel function. The channel is closed when the subscription is
// cancelled or the feed itself is closed.
func (f *Feed[T]) Subscribe() (<-chan T, CancelFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan T, f.buffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
			f.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers v to every current subscriber in subscription order.
// Items are dropped per-subscriber on buffer overflow.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
			metrics.FeedDropsTotal.WithLabelValues(f.name).Inc()
			log.Printf("stream: feed %s dropped item for slow subscriber", f.name)
		}
	}
}

// Close closes every subscriber channel and rejects further publishes.
// Idempotent.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the current number of attached subscribers.
func (f *Feed[T]) SubscriberCount() int {
	f.mu.Lock()
	n := len(f.subs)
	f.mu.Unlock()
	return n
}
