package stream

import (
	"log"
	"sync"
	"time"

	"github.com/relaychat/sync-engine/internal/metrics"
)

// Batch applies latency-aware batching to a stream: the first n items of a
// burst are emitted immediately as singleton batches, and everything after
// that is buffered until quiet of silence has passed, then flushed as one
// batch. The counter resets to zero after every flush, so the next burst
// again gets n immediate emissions.
//
// Ordering is preserved: items never reorder within a batch or across
// batches. If the pending queue would exceed maxQueue the whole queue is
// dropped and a warning is logged — deliberate load shedding, since
// downstream consumers recover via cache invalidation.
//
// When in closes, any pending queue is flushed as a final batch and the
// output closes. Cancelling discards the pending queue without flushing
// and stops the timer before returning.
func Batch[T any](in <-chan T, n int, quiet time.Duration, maxQueue int) (<-chan []T, CancelFunc) {
	out := make(chan []T)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(out)

		timer := time.NewTimer(quiet)
		if !timer.Stop() {
			<-timer.C
		}
		armed := false
		defer timer.Stop()

		rearm := func() {
			if armed && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(quiet)
			armed = true
		}

		emit := func(batch []T) bool {
			select {
			case out <- batch:
				return true
			case <-done:
				return false
			}
		}

		count := 0
		var queue []T

		for {
			select {
			case <-done:
				return

			case item, ok := <-in:
				if !ok {
					if len(queue) > 0 {
						emit(queue)
					}
					return
				}
				if count < n {
					count++
					if !emit([]T{item}) {
						return
					}
					rearm()
					continue
				}
				queue = append(queue, item)
				if len(queue) > maxQueue {
					log.Printf("stream: batch queue overflow (%d items), dropping entire queue", len(queue))
					metrics.BatchQueueDropsTotal.Inc()
					queue = nil
				}
				rearm()

			case <-timer.C:
				armed = false
				if len(queue) > 0 {
					if !emit(queue) {
						return
					}
					metrics.BatchFlushesTotal.Inc()
					queue = nil
				}
				count = 0
			}
		}
	}()

	return out, cancel
}
