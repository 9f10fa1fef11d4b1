package stream

import (
	"sync"
	"time"
)

// Throttle rate-limits a stream to at most one emission per interval, with
// both leading and trailing edges: the first item of a burst passes through
// immediately, and the most recent item seen during the interval is emitted
// when it elapses. Intermediate items are discarded.
//
// When in closes, a pending trailing item is emitted before the output
// closes. Cancelling stops the timer and discards any pending item.
func Throttle[T any](in <-chan T, interval time.Duration) (<-chan T, CancelFunc) {
	out := make(chan T)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(out)

		timer := time.NewTimer(interval)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		var (
			pending    T
			hasPending bool
			inWindow   bool
		)

		emit := func(v T) bool {
			select {
			case out <- v:
				return true
			case <-done:
				return false
			}
		}

		for {
			select {
			case <-done:
				return

			case item, ok := <-in:
				if !ok {
					if hasPending {
						emit(pending)
					}
					return
				}
				if !inWindow {
					if !emit(item) {
						return
					}
					inWindow = true
					timer.Reset(interval)
					continue
				}
				pending = item
				hasPending = true

			case <-timer.C:
				if hasPending {
					if !emit(pending) {
						return
					}
					hasPending = false
					var zero T
					pending = zero
					timer.Reset(interval)
					continue
				}
				inWindow = false
			}
		}
	}()

	return out, cancel
}
