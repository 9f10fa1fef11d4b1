package stream

import (
	"testing"
	"time"
)

type typingKey struct {
	channelID string
	userID    string
}

func TestKeyedExpiryEmitsImmediateTrueAndDelayedFalse(t *testing.T) {
	const window = 100 * time.Millisecond
	in := make(chan typingKey)
	out, cancel := KeyedExpiry(in, window)
	defer cancel()

	k := typingKey{"ch1", "u1"}
	start := time.Now()
	in <- k

	st := recvOne(t, out, time.Second)
	if st.Key != k || !st.Active {
		t.Fatalf("expected immediate active emission, got %+v", st)
	}
	if elapsed := time.Since(start); elapsed > window/2 {
		t.Fatalf("active emission not immediate: took %s", elapsed)
	}

	st = recvOne(t, out, window+500*time.Millisecond)
	if st.Key != k || st.Active {
		t.Fatalf("expected expiry emission, got %+v", st)
	}
	if elapsed := time.Since(start); elapsed < window {
		t.Fatalf("expiry fired early after %s (window %s)", elapsed, window)
	}
}

func TestKeyedExpirySupersedesPendingWindow(t *testing.T) {
	const window = 120 * time.Millisecond
	in := make(chan typingKey)
	out, cancel := KeyedExpiry(in, window)
	defer cancel()

	k := typingKey{"ch1", "u1"}

	in <- k
	recvOne(t, out, time.Second) // active

	// Re-key halfway through: the pending expiry must be cancelled and
	// the window restarted from this second event.
	time.Sleep(window / 2)
	second := time.Now()
	in <- k

	st := recvOne(t, out, time.Second)
	if !st.Active {
		t.Fatalf("expected second active emission, got %+v", st)
	}

	st = recvOne(t, out, window+500*time.Millisecond)
	if st.Active {
		t.Fatalf("expected expiry, got %+v", st)
	}
	if elapsed := time.Since(second); elapsed < window {
		t.Fatalf("expiry timed from first event, not last: %s < %s", elapsed, window)
	}

	// Only one false total.
	select {
	case extra := <-out:
		t.Fatalf("unexpected extra emission %+v", extra)
	case <-time.After(window + 50*time.Millisecond):
	}
}

func TestKeyedExpiryIndependentKeys(t *testing.T) {
	const window = 80 * time.Millisecond
	in := make(chan typingKey)
	out, cancel := KeyedExpiry(in, window)
	defer cancel()

	k1 := typingKey{"ch1", "u1"}
	k2 := typingKey{"ch1", "u2"}

	in <- k1
	recvOne(t, out, time.Second)
	time.Sleep(window / 2)
	in <- k2
	recvOne(t, out, time.Second)

	// k1 expires first, then k2, each timed from its own event.
	st := recvOne(t, out, window+500*time.Millisecond)
	if st.Key != k1 || st.Active {
		t.Fatalf("expected k1 expiry first, got %+v", st)
	}
	st = recvOne(t, out, window+500*time.Millisecond)
	if st.Key != k2 || st.Active {
		t.Fatalf("expected k2 expiry second, got %+v", st)
	}
}

func TestKeyedExpiryCancelStopsTimers(t *testing.T) {
	const window = 60 * time.Millisecond
	in := make(chan typingKey)
	out, cancel := KeyedExpiry(in, window)

	in <- typingKey{"ch1", "u1"}
	recvOne(t, out, time.Second)

	cancel()

	select {
	case st, ok := <-out:
		if ok {
			t.Fatalf("unexpected emission after cancel: %+v", st)
		}
	case <-time.After(window + 100*time.Millisecond):
		t.Fatal("output not closed after cancel")
	}
}
