package stream

import (
	"sync"
	"time"
)

// KeyState is one emission from KeyedExpiry: a key became active, or its
// window expired.
type KeyState[K comparable] struct {
	Key    K
	Active bool
}

// KeyedExpiry maintains one expiring window per key. Each inbound key
// immediately emits {key, true} and schedules {key, false} after window.
// A second occurrence of the same key before expiry supersedes the pending
// expiration and restarts the window from the latest occurrence — there is
// never more than one live window per key, and exactly one false emission
// per window, timed from the last event.
//
// A single goroutine owns the deadline map, so no locking is needed around
// per-key state. When in closes, pending windows are discarded without
// emitting false and the output closes. Cancelling behaves the same.
func KeyedExpiry[K comparable](in <-chan K, window time.Duration) (<-chan KeyState[K], CancelFunc) {
	out := make(chan KeyState[K])
	done := make(chan struct{})

	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(out)

		deadlines := make(map[K]time.Time)

		timer := time.NewTimer(window)
		if !timer.Stop() {
			<-timer.C
		}
		armed := false
		defer timer.Stop()

		// rearm points the timer at the earliest pending deadline.
		rearm := func() {
			if armed && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			armed = false
			if len(deadlines) == 0 {
				return
			}
			var earliest time.Time
			for _, d := range deadlines {
				if earliest.IsZero() || d.Before(earliest) {
					earliest = d
				}
			}
			timer.Reset(time.Until(earliest))
			armed = true
		}

		emit := func(st KeyState[K]) bool {
			select {
			case out <- st:
				return true
			case <-done:
				return false
			}
		}

		for {
			select {
			case <-done:
				return

			case key, ok := <-in:
				if !ok {
					return
				}
				if !emit(KeyState[K]{Key: key, Active: true}) {
					return
				}
				deadlines[key] = time.Now().Add(window)
				rearm()

			case <-timer.C:
				armed = false
				now := time.Now()
				for key, d := range deadlines {
					if d.After(now) {
						continue
					}
					delete(deadlines, key)
					if !emit(KeyState[K]{Key: key, Active: false}) {
						return
					}
				}
				rearm()
			}
		}
	}()

	return out, cancel
}
