// Package events derives the typed, category-specific streams from the
// connection's raw event feed. Each category is a pure pipeline — filter
// by event name, parse, shape — optionally composed with a timing
// operator: posts and channels are adaptively batched, reactions are
// throttled, users are deduplicated, typing runs per-key expiring
// windows.
//
// Every category pipeline is built exactly once per Streams instance and
// published on its own hot shared feed, so any number of consumers can
// attach without duplicating the parse work.
package events

import (
	"sync"
	"time"

	"github.com/relaychat/sync-engine/internal/metrics"
	"github.com/relaychat/sync-engine/internal/protocol"
	"github.com/relaychat/sync-engine/internal/stream"
)

// Config holds the timing parameters of the category pipelines.
type Config struct {
	BatchFirst    int           // immediate singleton emissions per burst
	BatchQuiet    time.Duration // quiet period before a buffered flush
	BatchMaxQueue int           // whole-queue drop threshold

	ReactionThrottle time.Duration // leading+trailing throttle interval
	TypingWindow     time.Duration // per-key typing expiry window
}

// DefaultConfig returns the production pipeline timings.
func DefaultConfig() Config {
	return Config{
		BatchFirst:       5,
		BatchQuiet:       100 * time.Millisecond,
		BatchMaxQueue:    200,
		ReactionThrottle: 250 * time.Millisecond,
		TypingWindow:     5 * time.Second,
	}
}

// Streams is the full set of typed category feeds for one session. Build
// it with New; tear it down with Close.
type Streams struct {
	Posts          *stream.Feed[[]PostEvent]
	Channels       *stream.Feed[[]ChannelEvent]
	Teams          *stream.Feed[TeamEvent]
	Users          *stream.Feed[UserEvent]
	Reactions      *stream.Feed[ReactionEvent]
	Threads        *stream.Feed[ThreadEvent]
	Preferences    *stream.Feed[PreferenceEvent]
	Typing         *stream.Feed[TypingEvent]
	Sidebar        *stream.Feed[SidebarEvent]
	Drafts         *stream.Feed[DraftEvent]
	System         *stream.Feed[SystemEvent]
	Dialogs        *stream.Feed[DialogEvent]
	Bookmarks      *stream.Feed[BookmarkEvent]
	Groups         *stream.Feed[GroupEvent]
	Roles          *stream.Feed[RoleEvent]
	Cloud          *stream.Feed[CloudEvent]
	ScheduledPosts *stream.Feed[ScheduledPostEvent]

	cancels []stream.CancelFunc
	wg      sync.WaitGroup
}

// New builds every category pipeline over the given raw feed. The raw
// feed is subscribed once per category; the physical transport behind it
// is not touched.
func New(raw *stream.Feed[protocol.RawEvent], cfg Config) *Streams {
	s := &Streams{}

	// Pipelines propagate teardown by channel closure: cancelling the raw
	// subscription drains each stage, flushes what the operator semantics
	// call for, and closes the category feed. The operators' own cancel
	// functions are for direct users that need to abandon a pipeline
	// mid-stream; here the close path is the teardown path.
	postBatches, _ := stream.Batch(project(s, raw, "posts", postEventNames, parsePostEvent),
		cfg.BatchFirst, cfg.BatchQuiet, cfg.BatchMaxQueue)
	s.Posts = fanout(s, "posts", postBatches)

	channelBatches, _ := stream.Batch(project(s, raw, "channels", channelEventNames, parseChannelEvent),
		cfg.BatchFirst, cfg.BatchQuiet, cfg.BatchMaxQueue)
	s.Channels = fanout(s, "channels", channelBatches)

	s.Teams = fanout(s, "teams",
		project(s, raw, "teams", teamEventNames, parseTeamEvent))

	distinctUsers, _ := stream.Distinct(project(s, raw, "users", userEventNames, parseUserEvent), sameUserEvent)
	s.Users = fanout(s, "users", distinctUsers)

	throttledReactions, _ := stream.Throttle(project(s, raw, "reactions", reactionEventNames, parseReactionEvent),
		cfg.ReactionThrottle)
	s.Reactions = fanout(s, "reactions", throttledReactions)

	s.Threads = fanout(s, "threads",
		project(s, raw, "threads", threadEventNames, parseThreadEvent))
	s.Preferences = fanout(s, "preferences",
		project(s, raw, "preferences", preferenceEventNames, parsePreferenceEvent))

	typingStates, _ := stream.KeyedExpiry(project(s, raw, "typing", typingEventNames, parseTypingKey),
		cfg.TypingWindow)
	s.Typing = fanout(s, "typing", mapChan(s, typingStates, typingEventFromState))

	s.Sidebar = fanout(s, "sidebar",
		project(s, raw, "sidebar", sidebarEventNames, parseSidebarEvent))
	s.Drafts = fanout(s, "drafts",
		project(s, raw, "drafts", draftEventNames, parseDraftEvent))
	s.System = fanout(s, "system",
		project(s, raw, "system", systemEventNames, parseSystemEvent))
	s.Dialogs = fanout(s, "dialogs",
		project(s, raw, "dialogs", dialogEventNames, parseDialogEvent))
	s.Bookmarks = fanout(s, "bookmarks",
		project(s, raw, "bookmarks", bookmarkEventNames, parseBookmarkEvent))
	s.Groups = fanout(s, "groups",
		project(s, raw, "groups", groupEventNames, parseGroupEvent))
	s.Roles = fanout(s, "roles",
		project(s, raw, "roles", roleEventNames, parseRoleEvent))
	s.Cloud = fanout(s, "cloud",
		project(s, raw, "cloud", cloudEventNames, parseCloudEvent))
	s.ScheduledPosts = fanout(s, "scheduled_posts",
		project(s, raw, "scheduled_posts", scheduledPostEventNames, parseScheduledPostEvent))

	return s
}

// Close cancels every raw-feed subscription and waits for the pipelines
// to drain and close their category feeds. All operator timers are
// stopped by the time Close returns.
func (s *Streams) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.wg.Wait()
}

// project subscribes the raw feed once and emits the parsed projection of
// every matching event, in arrival order.
func project[T any](s *Streams, raw *stream.Feed[protocol.RawEvent], category string,
	names map[string]bool, parse func(protocol.RawEvent) (T, bool)) <-chan T {

	rawCh, cancel := raw.Subscribe()
	s.cancels = append(s.cancels, cancel)

	out := make(chan T)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		for ev := range rawCh {
			if !names[ev.Event] {
				continue
			}
			v, ok := parse(ev)
			if !ok {
				continue
			}
			metrics.EventsTotal.WithLabelValues(category).Inc()
			out <- v
		}
	}()
	return out
}

// fanout drains a pipeline into its category feed and closes the feed
// when the pipeline ends.
func fanout[T any](s *Streams, name string, in <-chan T) *stream.Feed[T] {
	f := stream.NewFeed[T](name)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for v := range in {
			f.Publish(v)
		}
		f.Close()
	}()
	return f
}

// mapChan applies a pure transform to every item of a pipeline.
func mapChan[A, B any](s *Streams, in <-chan A, fn func(A) B) <-chan B {
	out := make(chan B)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		for v := range in {
			out <- fn(v)
		}
	}()
	return out
}
