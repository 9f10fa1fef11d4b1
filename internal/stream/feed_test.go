package stream

import (
	"testing"
	"time"
)

func TestFeedFanOut(t *testing.T) {
	f := NewFeed[int]("test")
	a, cancelA := f.Subscribe()
	b, cancelB := f.Subscribe()
	defer cancelA()
	defer cancelB()

	f.Publish(1)
	f.Publish(2)

	for name, ch := range map[string]<-chan int{"a": a, "b": b} {
		for want := 1; want <= 2; want++ {
			select {
			case got := <-ch:
				if got != want {
					t.Errorf("subscriber %s: expected %d, got %d", name, want, got)
				}
			case <-time.After(time.Second):
				t.Fatalf("subscriber %s: timed out waiting for %d", name, want)
			}
		}
	}
}

func TestFeedNoReplayForLateSubscriber(t *testing.T) {
	f := NewFeed[int]("test")
	defer f.Close()

	f.Publish(1)

	late, cancel := f.Subscribe()
	defer cancel()

	select {
	case v := <-late:
		t.Fatalf("late subscriber received replayed item %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFeedCancelStopsDelivery(t *testing.T) {
	f := NewFeed[int]("test")
	ch, cancel := f.Subscribe()

	cancel()
	f.Publish(1)

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	if f.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", f.SubscriberCount())
	}

	// Second cancel must be a no-op.
	cancel()
}

func TestFeedClose(t *testing.T) {
	f := NewFeed[int]("test")
	ch, cancel := f.Subscribe()
	defer cancel()

	f.Close()
	f.Close() // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("expected subscriber channel closed after feed close")
	}

	// Publishing after close must not panic.
	f.Publish(1)

	// Subscribing after close yields a closed channel.
	ch2, cancel2 := f.Subscribe()
	defer cancel2()
	if _, ok := <-ch2; ok {
		t.Fatal("expected closed channel when subscribing to a closed feed")
	}
}

func TestFeedSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	f := NewFeed[int]("test")
	defer f.Close()

	// The slow subscriber never drains; its buffer fills and overflows.
	_, cancelSlow := f.Subscribe()
	defer cancelSlow()

	fast, cancelFast := f.Subscribe()
	defer cancelFast()

	// Publish is non-blocking, so this completes even though the slow
	// subscriber never drains and overflows its buffer.
	total := 2 * DefaultSubscriberBuffer
	for i := 0; i < total; i++ {
		f.Publish(i)
	}

	// The fast subscriber may have had items dropped once its own buffer
	// filled, but whatever arrived must be in publish order.
	prev := -1
	count := 0
drain:
	for {
		select {
		case got := <-fast:
			if got <= prev {
				t.Fatalf("order broken: %d after %d", got, prev)
			}
			prev = got
			count++
		default:
			break drain
		}
	}
	if count < DefaultSubscriberBuffer {
		t.Fatalf("expected at least %d items delivered, got %d", DefaultSubscriberBuffer, count)
	}
}
