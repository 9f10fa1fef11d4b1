package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/relaychat/sync-engine/internal/cache"
	"github.com/relaychat/sync-engine/internal/connection"
	"github.com/relaychat/sync-engine/internal/ephemeral"
	"github.com/relaychat/sync-engine/internal/events"
	"github.com/relaychat/sync-engine/internal/protocol"
	"github.com/relaychat/sync-engine/internal/stream"
)

type stubSource struct {
	events *stream.Feed[protocol.RawEvent]
	status *stream.Feed[connection.Status]
}

func (s *stubSource) Events() *stream.Feed[protocol.RawEvent]     { return s.events }
func (s *stubSource) StatusFeed() *stream.Feed[connection.Status] { return s.status }

type fixture struct {
	src     *stubSource
	session *Session
	cache   *cache.Store
	typing  *ephemeral.TypingStore
	pres    *ephemeral.PresenceStore
	drafts  *ephemeral.DraftStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := func() *redis.Client {
		return redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}

	src := &stubSource{
		events: stream.NewFeed[protocol.RawEvent]("raw"),
		status: stream.NewFeed[connection.Status]("status"),
	}

	cfg := events.DefaultConfig()
	cfg.BatchQuiet = 40 * time.Millisecond
	cfg.TypingWindow = 80 * time.Millisecond
	cfg.ReactionThrottle = 20 * time.Millisecond

	f := &fixture{
		src:    src,
		cache:  cache.NewStoreWithClient(client()),
		typing: ephemeral.NewTypingStoreWithClient(client()),
		pres:   ephemeral.NewPresenceStoreWithClient(client()),
		drafts: ephemeral.NewDraftStoreWithClient(client()),
	}

	session, err := Initialize(Deps{
		Source:   src,
		Cache:    f.cache,
		Typing:   f.typing,
		Presence: f.pres,
		Drafts:   f.drafts,
		Events:   cfg,
	}, Context{CurrentUserID: "me", CurrentTeamID: "team1"})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	f.session = session

	t.Cleanup(func() {
		session.Close()
		src.events.Close()
		src.status.Close()
	})
	return f
}

// waitFor polls cond until it holds or the deadline passes. Handlers run
// asynchronously behind the pipelines, so store state trails publishes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func postedFrame(id, channelID, message string) protocol.RawEvent {
	post, _ := json.Marshal(map[string]any{
		"id": id, "channel_id": channelID, "message": message, "create_at": 1000,
	})
	return protocol.RawEvent{
		Event:     protocol.EventPosted,
		Data:      map[string]any{"post": string(post)},
		Broadcast: protocol.Broadcast{ChannelID: channelID},
	}
}

func TestPostedEventCachesAndOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.src.events.Publish(postedFrame("p1", "ch1", "hello"))

	waitFor(t, func() bool {
		ok, _ := f.cache.Exists(ctx, cache.DomainPosts, "p1")
		return ok
	})

	var post events.Post
	if ok, _ := f.cache.Get(ctx, cache.DomainPosts, "p1", &post); !ok || post.Message != "hello" {
		t.Fatalf("expected cached post, got ok=%v post=%+v", ok, post)
	}
	members, _ := f.cache.ListMembers(ctx, cache.DomainPosts, "ch1")
	if len(members) != 1 || members[0] != "p1" {
		t.Fatalf("expected channel order [p1], got %v", members)
	}
}

func TestEditedPostDoesNotResurrect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	post, _ := json.Marshal(map[string]any{"id": "ghost", "channel_id": "ch1", "message": "edited"})
	f.src.events.Publish(protocol.RawEvent{
		Event:     protocol.EventPostEdited,
		Data:      map[string]any{"post": string(post)},
		Broadcast: protocol.Broadcast{ChannelID: "ch1"},
	})

	// Give the pipeline time to process, then confirm nothing was written.
	time.Sleep(200 * time.Millisecond)
	if ok, _ := f.cache.Exists(ctx, cache.DomainPosts, "ghost"); ok {
		t.Fatal("edit of an uncached post must not create an entry")
	}
}

func TestDeletedPostRemovedFromCacheAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.src.events.Publish(postedFrame("p1", "ch1", "hello"))
	waitFor(t, func() bool {
		ok, _ := f.cache.Exists(ctx, cache.DomainPosts, "p1")
		return ok
	})

	f.src.events.Publish(protocol.RawEvent{
		Event:     protocol.EventPostDeleted,
		Data:      map[string]any{"post_id": "p1"},
		Broadcast: protocol.Broadcast{ChannelID: "ch1"},
	})

	waitFor(t, func() bool {
		ok, _ := f.cache.Exists(ctx, cache.DomainPosts, "p1")
		return !ok
	})
	members, _ := f.cache.ListMembers(ctx, cache.DomainPosts, "ch1")
	if len(members) != 0 {
		t.Fatalf("expected empty channel order, got %v", members)
	}
}

func TestReactionPatchesCachedPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.src.events.Publish(postedFrame("p1", "ch1", "hello"))
	waitFor(t, func() bool {
		ok, _ := f.cache.Exists(ctx, cache.DomainPosts, "p1")
		return ok
	})

	reaction, _ := json.Marshal(map[string]any{
		"user_id": "u1", "post_id": "p1", "emoji_name": "tada",
	})
	f.src.events.Publish(protocol.RawEvent{
		Event: protocol.EventReactionAdded,
		Data:  map[string]any{"reaction": string(reaction)},
	})

	waitFor(t, func() bool {
		var post events.Post
		ok, _ := f.cache.Get(ctx, cache.DomainPosts, "p1", &post)
		return ok && len(post.Reactions) == 1 && post.Reactions[0].EmojiName == "tada"
	})
}

func TestTypingLifecycleWritesAndClears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.src.events.Publish(protocol.RawEvent{
		Event:     protocol.EventTyping,
		Data:      map[string]any{"user_id": "u1"},
		Broadcast: protocol.Broadcast{ChannelID: "ch1"},
	})

	waitFor(t, func() bool {
		users, _ := f.typing.TypingUsers(ctx, "ch1")
		return len(users) == 1 && users[0] == "u1"
	})

	// After the window expires with no further events the entry clears.
	waitFor(t, func() bool {
		users, _ := f.typing.TypingUsers(ctx, "ch1")
		return len(users) == 0
	})
}

func TestStatusChangeUpdatesPresence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.src.events.Publish(protocol.RawEvent{
		Event: protocol.EventStatusChange,
		Data:  map[string]any{"user_id": "u1", "status": "away"},
	})

	waitFor(t, func() bool {
		st, _ := f.pres.GetStatus(ctx, "u1")
		return st == ephemeral.StatusAway
	})
}

func TestDraftEventsFlowToDraftStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, _ := json.Marshal(map[string]any{
		"channel_id": "ch1", "root_id": "", "user_id": "me", "message": "wip",
	})
	f.src.events.Publish(protocol.RawEvent{
		Event: protocol.EventDraftCreated,
		Data:  map[string]any{"draft": string(draft)},
	})

	waitFor(t, func() bool {
		var d events.Draft
		ok, _ := f.drafts.Get(ctx, "ch1", "", &d)
		return ok && d.Message == "wip"
	})
}

func TestRecoverySweepOnlyAfterDrop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Initial connect: no sweep.
	f.src.status.Publish(connection.StatusConnecting)
	f.src.status.Publish(connection.StatusConnected)

	f.src.events.Publish(postedFrame("p1", "ch1", "hello"))
	waitFor(t, func() bool {
		ok, _ := f.cache.Exists(ctx, cache.DomainPosts, "p1")
		return ok
	})
	f.pres.SetStatus(ctx, "u1", "online")

	// Drop and recover: the sweep wipes the divergence-prone domains.
	f.src.status.Publish(connection.StatusReconnecting)
	f.src.status.Publish(connection.StatusConnected)

	waitFor(t, func() bool {
		ok, _ := f.cache.Exists(ctx, cache.DomainPosts, "p1")
		return !ok
	})
	waitFor(t, func() bool {
		st, _ := f.pres.GetStatus(ctx, "u1")
		return st == ephemeral.StatusOffline
	})
}

func TestEveryCategoryStreamHasASubscriber(t *testing.T) {
	f := newFixture(t)
	s := f.session.Streams()

	feeds := map[string]interface{ SubscriberCount() int }{
		"posts":           s.Posts,
		"channels":        s.Channels,
		"teams":           s.Teams,
		"users":           s.Users,
		"reactions":       s.Reactions,
		"threads":         s.Threads,
		"preferences":     s.Preferences,
		"typing":          s.Typing,
		"sidebar":         s.Sidebar,
		"drafts":          s.Drafts,
		"system":          s.System,
		"dialogs":         s.Dialogs,
		"bookmarks":       s.Bookmarks,
		"groups":          s.Groups,
		"roles":           s.Roles,
		"cloud":           s.Cloud,
		"scheduled_posts": s.ScheduledPosts,
	}
	for name, feed := range feeds {
		if feed.SubscriberCount() == 0 {
			t.Errorf("category %s has no subscriber after Initialize", name)
		}
	}
}

func TestScheduledPostEventsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sp, _ := json.Marshal(map[string]any{
		"id": "sp1", "channel_id": "ch1", "message": "later", "scheduled_at": 2000,
	})
	f.src.events.Publish(protocol.RawEvent{
		Event: protocol.EventScheduledPostCreated,
		Data:  map[string]any{"scheduled_post": string(sp)},
	})

	waitFor(t, func() bool {
		ok, _ := f.cache.Exists(ctx, cache.DomainScheduledPosts, "sp1")
		return ok
	})

	f.src.events.Publish(protocol.RawEvent{
		Event: protocol.EventScheduledPostDeleted,
		Data:  map[string]any{"scheduled_post": string(sp)},
	})
	waitFor(t, func() bool {
		ok, _ := f.cache.Exists(ctx, cache.DomainScheduledPosts, "sp1")
		return !ok
	})
}

func TestChannelDeletedClearsEntryAndTeamOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	channel, _ := json.Marshal(map[string]any{
		"id": "ch1", "team_id": "team1", "name": "general",
	})
	f.src.events.Publish(protocol.RawEvent{
		Event: protocol.EventChannelCreated,
		Data:  map[string]any{"channel": string(channel)},
	})
	waitFor(t, func() bool {
		members, _ := f.cache.ListMembers(ctx, cache.DomainChannels, "team1")
		return len(members) == 1 && members[0] == "ch1"
	})

	f.src.events.Publish(protocol.RawEvent{
		Event: protocol.EventChannelDeleted,
		Data:  map[string]any{"channel_id": "ch1", "team_id": "team1"},
	})
	waitFor(t, func() bool {
		ok, _ := f.cache.Exists(ctx, cache.DomainChannels, "ch1")
		return !ok
	})
	members, _ := f.cache.ListMembers(ctx, cache.DomainChannels, "team1")
	if len(members) != 0 {
		t.Fatalf("expected empty team order, got %v", members)
	}
}

func TestBookmarkSortUpsertsSetAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bookmarks, _ := json.Marshal([]map[string]any{
		{"id": "b2", "channel_id": "ch1", "display_name": "second", "sort_order": 0},
		{"id": "b1", "channel_id": "ch1", "display_name": "first", "sort_order": 1},
	})
	f.src.events.Publish(protocol.RawEvent{
		Event:     protocol.EventBookmarkSorted,
		Data:      map[string]any{"bookmarks": string(bookmarks)},
		Broadcast: protocol.Broadcast{ChannelID: "ch1"},
	})

	var order []string
	waitFor(t, func() bool {
		ok, _ := f.cache.Get(ctx, cache.DomainBookmarks, "order:ch1", &order)
		return ok
	})
	if len(order) != 2 || order[0] != "b2" || order[1] != "b1" {
		t.Fatalf("expected order [b2 b1], got %v", order)
	}

	var b events.Bookmark
	if ok, _ := f.cache.Get(ctx, cache.DomainBookmarks, "b2", &b); !ok || b.DisplayName != "second" {
		t.Fatalf("expected b2 upserted from the sort event, got ok=%v %+v", ok, b)
	}
}

func TestCloseIsIdempotentAndStopsHandlers(t *testing.T) {
	f := newFixture(t)

	f.session.Close()
	f.session.Close()

	// Publishing after close must not panic or write.
	f.src.events.Publish(postedFrame("p9", "ch1", "late"))
	time.Sleep(100 * time.Millisecond)
	if ok, _ := f.cache.Exists(context.Background(), cache.DomainPosts, "p9"); ok {
		t.Fatal("handler wrote after Close")
	}
}
