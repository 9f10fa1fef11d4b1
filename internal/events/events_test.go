package events

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/relaychat/sync-engine/internal/protocol"
	"github.com/relaychat/sync-engine/internal/stream"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchQuiet = 100 * time.Millisecond
	cfg.ReactionThrottle = 60 * time.Millisecond
	cfg.TypingWindow = 120 * time.Millisecond
	return cfg
}

func postedEvent(id, channelID, message string) protocol.RawEvent {
	post, _ := json.Marshal(map[string]any{
		"id":         id,
		"channel_id": channelID,
		"message":    message,
		"create_at":  1000,
	})
	return protocol.RawEvent{
		Event:     protocol.EventPosted,
		Data:      map[string]any{"post": string(post)},
		Broadcast: protocol.Broadcast{ChannelID: channelID},
	}
}

func recvIn[T any](t *testing.T, ch <-chan T, deadline time.Duration) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("stream closed unexpectedly")
		}
		return v
	case <-time.After(deadline):
		t.Fatal("timed out waiting for emission")
		var zero T
		return zero
	}
}

func TestPostBurstBatching(t *testing.T) {
	raw := stream.NewFeed[protocol.RawEvent]("raw")
	s := New(raw, testConfig())
	defer s.Close()
	defer raw.Close()

	posts, cancel := s.Posts.Subscribe()
	defer cancel()

	// Burst of 7 rapid posted events with n=5: five immediate singleton
	// emissions, then one 2-post batch after the quiet period.
	for i := 1; i <= 7; i++ {
		raw.Publish(postedEvent(fmt.Sprintf("p%d", i), "ch1", "hi"))
	}

	for i := 1; i <= 5; i++ {
		b := recvIn(t, posts, time.Second)
		if len(b) != 1 {
			t.Fatalf("emission %d: expected singleton, got %d posts", i, len(b))
		}
		if b[0].Post == nil || b[0].Post.ID != fmt.Sprintf("p%d", i) {
			t.Fatalf("emission %d out of order: %+v", i, b[0])
		}
		if b[0].Type != PostCreated {
			t.Fatalf("expected created event, got %s", b[0].Type)
		}
	}

	b := recvIn(t, posts, time.Second)
	if len(b) != 2 || b[0].Post.ID != "p6" || b[1].Post.ID != "p7" {
		t.Fatalf("expected trailing batch [p6 p7], got %+v", b)
	}
}

func TestMalformedEmbeddedPostDegradesButFlows(t *testing.T) {
	raw := stream.NewFeed[protocol.RawEvent]("raw")
	s := New(raw, testConfig())
	defer s.Close()
	defer raw.Close()

	posts, cancel := s.Posts.Subscribe()
	defer cancel()

	raw.Publish(protocol.RawEvent{
		Event: protocol.EventPosted,
		Data: map[string]any{
			"post":       `{"id":"broken`,
			"post_id":    "p1",
			"channel_id": "ch1",
		},
		Broadcast: protocol.Broadcast{ChannelID: "ch1"},
	})

	b := recvIn(t, posts, time.Second)
	if b[0].Post != nil {
		t.Error("expected nil Post for malformed embedded document")
	}
	if b[0].PostID != "p1" || b[0].ChannelID != "ch1" {
		t.Errorf("expected identity fields preserved, got %+v", b[0])
	}

	// The stream keeps emitting valid events afterwards.
	raw.Publish(postedEvent("p2", "ch1", "still alive"))
	b = recvIn(t, posts, time.Second)
	if b[0].Post == nil || b[0].Post.ID != "p2" {
		t.Fatalf("expected p2 after malformed event, got %+v", b[0])
	}
}

func TestUnknownEventNamesIgnored(t *testing.T) {
	raw := stream.NewFeed[protocol.RawEvent]("raw")
	s := New(raw, testConfig())
	defer s.Close()
	defer raw.Close()

	posts, cancel := s.Posts.Subscribe()
	defer cancel()

	raw.Publish(protocol.RawEvent{Event: "totally_unknown", Data: map[string]any{}})

	select {
	case b := <-posts:
		t.Fatalf("unexpected emission for unknown event: %+v", b)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestTypingWindowLifecycle(t *testing.T) {
	cfg := testConfig()
	raw := stream.NewFeed[protocol.RawEvent]("raw")
	s := New(raw, cfg)
	defer s.Close()
	defer raw.Close()

	typing, cancel := s.Typing.Subscribe()
	defer cancel()

	typingFrame := protocol.RawEvent{
		Event:     protocol.EventTyping,
		Data:      map[string]any{"user_id": "u1"},
		Broadcast: protocol.Broadcast{ChannelID: "ch1"},
	}

	start := time.Now()
	raw.Publish(typingFrame)

	ev := recvIn(t, typing, time.Second)
	if !ev.IsTyping || ev.ChannelID != "ch1" || ev.UserID != "u1" {
		t.Fatalf("expected immediate typing=true, got %+v", ev)
	}

	// A second event inside the window supersedes the pending expiry.
	time.Sleep(cfg.TypingWindow / 2)
	second := time.Now()
	raw.Publish(typingFrame)
	ev = recvIn(t, typing, time.Second)
	if !ev.IsTyping {
		t.Fatalf("expected second typing=true, got %+v", ev)
	}

	ev = recvIn(t, typing, cfg.TypingWindow+time.Second)
	if ev.IsTyping {
		t.Fatalf("expected typing=false, got %+v", ev)
	}
	if elapsed := time.Since(second); elapsed < cfg.TypingWindow {
		t.Fatalf("typing=false timed from first event (%s since start %s)", elapsed, time.Since(start))
	}

	// Exactly one false.
	select {
	case extra := <-typing:
		t.Fatalf("unexpected extra typing emission %+v", extra)
	case <-time.After(cfg.TypingWindow + 50*time.Millisecond):
	}
}

func TestTypingEventWithoutKeyFieldsDropped(t *testing.T) {
	raw := stream.NewFeed[protocol.RawEvent]("raw")
	s := New(raw, testConfig())
	defer s.Close()
	defer raw.Close()

	typing, cancel := s.Typing.Subscribe()
	defer cancel()

	raw.Publish(protocol.RawEvent{Event: protocol.EventTyping, Data: map[string]any{}})

	select {
	case ev := <-typing:
		t.Fatalf("expected keyless typing event to be dropped, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUserEventsDeduplicated(t *testing.T) {
	raw := stream.NewFeed[protocol.RawEvent]("raw")
	s := New(raw, testConfig())
	defer s.Close()
	defer raw.Close()

	users, cancel := s.Users.Subscribe()
	defer cancel()

	status := func(user, st string) protocol.RawEvent {
		return protocol.RawEvent{
			Event: protocol.EventStatusChange,
			Data:  map[string]any{"user_id": user, "status": st},
		}
	}

	raw.Publish(status("u1", "online"))
	raw.Publish(status("u1", "online")) // duplicate, suppressed
	raw.Publish(status("u1", "away"))

	ev := recvIn(t, users, time.Second)
	if ev.UserID != "u1" || ev.Status != "online" {
		t.Fatalf("expected online, got %+v", ev)
	}
	ev = recvIn(t, users, time.Second)
	if ev.Status != "away" {
		t.Fatalf("expected away after dedupe, got %+v", ev)
	}
}

func TestReactionThrottleKeepsLatest(t *testing.T) {
	cfg := testConfig()
	raw := stream.NewFeed[protocol.RawEvent]("raw")
	s := New(raw, cfg)
	defer s.Close()
	defer raw.Close()

	reactions, cancel := s.Reactions.Subscribe()
	defer cancel()

	reaction := func(emoji string) protocol.RawEvent {
		r, _ := json.Marshal(map[string]any{
			"user_id": "u1", "post_id": "p1", "emoji_name": emoji,
		})
		return protocol.RawEvent{
			Event: protocol.EventReactionAdded,
			Data:  map[string]any{"reaction": string(r)},
		}
	}

	raw.Publish(reaction("thumbsup"))
	ev := recvIn(t, reactions, time.Second)
	if ev.Reaction == nil || ev.Reaction.EmojiName != "thumbsup" {
		t.Fatalf("expected leading thumbsup, got %+v", ev)
	}

	raw.Publish(reaction("smile"))
	raw.Publish(reaction("tada"))

	ev = recvIn(t, reactions, cfg.ReactionThrottle+time.Second)
	if ev.Reaction == nil || ev.Reaction.EmojiName != "tada" {
		t.Fatalf("expected trailing tada, got %+v", ev)
	}
}

func TestStreamsShareSinglePipelinePerCategory(t *testing.T) {
	raw := stream.NewFeed[protocol.RawEvent]("raw")
	s := New(raw, testConfig())
	defer s.Close()
	defer raw.Close()

	a, cancelA := s.Posts.Subscribe()
	defer cancelA()
	b, cancelB := s.Posts.Subscribe()
	defer cancelB()

	raw.Publish(postedEvent("p1", "ch1", "hi"))

	ba := recvIn(t, a, time.Second)
	bb := recvIn(t, b, time.Second)
	if ba[0].Post.ID != "p1" || bb[0].Post.ID != "p1" {
		t.Fatal("both subscribers should observe the same event")
	}
}

func TestStreamsCloseDrainsPipelines(t *testing.T) {
	raw := stream.NewFeed[protocol.RawEvent]("raw")
	s := New(raw, testConfig())

	posts, cancel := s.Posts.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Streams.Close did not return")
	}

	if _, ok := <-posts; ok {
		t.Fatal("expected category feed closed after Streams.Close")
	}
	raw.Close()
}
