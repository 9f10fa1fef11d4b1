package stream

import "sync"

// Distinct suppresses consecutive duplicates: an item is forwarded only if
// eq reports it differs from the previously forwarded item. The first item
// always passes. Non-consecutive repeats are not deduplicated.
func Distinct[T any](in <-chan T, eq func(prev, cur T) bool) (<-chan T, CancelFunc) {
	out := make(chan T)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(out)

		var (
			prev T
			seen bool
		)
		for {
			select {
			case <-done:
				return
			case item, ok := <-in:
				if !ok {
					return
				}
				if seen && eq(prev, item) {
					continue
				}
				select {
				case out <- item:
				case <-done:
					return
				}
				prev = item
				seen = true
			}
		}
	}()

	return out, cancel
}
