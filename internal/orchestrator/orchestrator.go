// Package orchestrator owns the lifecycle of one sync session: it builds
// the typed category streams over a connection's raw feed, attaches the
// store handlers that keep the cache and ephemeral state current, and
// watches connection status to run a recovery sweep after every gap in
// event delivery.
package orchestrator

import (
	"context"
	"log"
	"sync"

	"github.com/relaychat/sync-engine/internal/cache"
	"github.com/relaychat/sync-engine/internal/connection"
	"github.com/relaychat/sync-engine/internal/ephemeral"
	"github.com/relaychat/sync-engine/internal/events"
	"github.com/relaychat/sync-engine/internal/metrics"
	"github.com/relaychat/sync-engine/internal/protocol"
	"github.com/relaychat/sync-engine/internal/stream"
)

// Source is the upstream the orchestrator consumes: a raw event feed and
// a connection status feed. *connection.Manager satisfies it; tests plug
// in stubs.
type Source interface {
	Events() *stream.Feed[protocol.RawEvent]
	StatusFeed() *stream.Feed[connection.Status]
}

// Context carries the identity the session runs as. Used to scope cache
// writes that the wire frames leave implicit.
type Context struct {
	CurrentUserID string
	CurrentTeamID string
}

// Deps are the stores and upstream a session needs.
type Deps struct {
	Source   Source
	Cache    *cache.Store
	Typing   *ephemeral.TypingStore
	Presence *ephemeral.PresenceStore
	Drafts   *ephemeral.DraftStore

	Events events.Config
}

// Session is one initialized sync session.
type Session struct {
	streams *events.Streams
	sctx    Context
	deps    Deps

	cancels []stream.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// Initialize builds the category streams and starts the store handlers
// and the status watcher. The returned session keeps running until Close.
func Initialize(deps Deps, sctx Context) (*Session, error) {
	s := &Session{
		streams: events.New(deps.Source.Events(), deps.Events),
		sctx:    sctx,
		deps:    deps,
	}

	s.watchStatus(deps.Source.StatusFeed())
	s.attachHandlers()

	log.Printf("orchestrator: session initialized user=%s team=%s", sctx.CurrentUserID, sctx.CurrentTeamID)
	return s, nil
}

// Streams exposes the typed category feeds for consumers.
func (s *Session) Streams() *events.Streams {
	return s.streams
}

// Close detaches the handlers and tears down the category pipelines. Safe
// to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		for _, cancel := range s.cancels {
			cancel()
		}
		s.streams.Close()
		s.wg.Wait()
		log.Printf("orchestrator: session closed")
	})
}

// handle subscribes one category feed and runs fn for every emission.
func handle[T any](s *Session, f *stream.Feed[T], fn func(context.Context, T)) {
	ch, cancel := f.Subscribe()
	s.cancels = append(s.cancels, cancel)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for v := range ch {
			fn(context.Background(), v)
		}
	}()
}

// watchStatus runs the recovery sweep whenever the connection comes back
// after a drop. Only the Reconnecting -> Connected edge triggers a sweep;
// the initial Connecting -> Connected edge does not, nothing was missed.
func (s *Session) watchStatus(statusFeed *stream.Feed[connection.Status]) {
	ch, cancel := statusFeed.Subscribe()
	s.cancels = append(s.cancels, cancel)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		prev := connection.StatusDisconnected
		for st := range ch {
			if prev == connection.StatusReconnecting && st == connection.StatusConnected {
				s.recoverySweep(context.Background())
			}
			prev = st
		}
	}()
}

// recoverySweep invalidates every cache domain whose contents may have
// diverged while events were not flowing, and wipes presence, which is
// derivable and cheaper to relearn than to trust.
func (s *Session) recoverySweep(ctx context.Context) {
	log.Printf("orchestrator: reconnected after drop, running recovery sweep")
	metrics.RecoverySweepsTotal.Inc()

	for _, domain := range []string{
		cache.DomainPosts,
		cache.DomainChannels,
		cache.DomainThreads,
		cache.DomainUsers,
	} {
		if err := s.deps.Cache.Invalidate(ctx, domain); err != nil {
			log.Printf("orchestrator: invalidate %s failed: %v", domain, err)
		}
	}
	if err := s.deps.Presence.Clear(ctx); err != nil {
		log.Printf("orchestrator: presence clear failed: %v", err)
	}
}
