// Package bridge republishes the typed category streams onto NATS so
// other services can consume sync events without holding their own
// websocket session. Each category gets its own subject under sync.*.
package bridge

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/relaychat/sync-engine/internal/events"
	"github.com/relaychat/sync-engine/internal/stream"
)

// NATS subject per category.
const (
	SubjectPosts          = "sync.posts"
	SubjectChannels       = "sync.channels"
	SubjectTeams          = "sync.teams"
	SubjectUsers          = "sync.users"
	SubjectReactions      = "sync.reactions"
	SubjectThreads        = "sync.threads"
	SubjectPreferences    = "sync.preferences"
	SubjectTyping         = "sync.typing"
	SubjectSidebar        = "sync.sidebar"
	SubjectDrafts         = "sync.drafts"
	SubjectSystem         = "sync.system"
	SubjectDialogs        = "sync.dialogs"
	SubjectBookmarks      = "sync.bookmarks"
	SubjectGroups         = "sync.groups"
	SubjectRoles          = "sync.roles"
	SubjectCloud          = "sync.cloud"
	SubjectScheduledPosts = "sync.scheduled_posts"
)

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for infinite
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "sync-engine",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Bridge fans the category streams out to NATS.
type Bridge struct {
	conn    *nats.Conn
	cancels []stream.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// New connects to NATS. It returns an error if the initial connection
// fails; later drops are handled by the client's own reconnect loop.
func New(config Config) (*Bridge, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("bridge: nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("bridge: nats reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("bridge: nats connect: %w", err)
	}
	log.Printf("bridge: connected to %s", nc.ConnectedUrl())

	return &Bridge{conn: nc}, nil
}

// Attach subscribes every category feed and republishes emissions as
// JSON. Call once per Streams instance.
func (b *Bridge) Attach(s *events.Streams) {
	republish(b, s.Posts, SubjectPosts)
	republish(b, s.Channels, SubjectChannels)
	republish(b, s.Teams, SubjectTeams)
	republish(b, s.Users, SubjectUsers)
	republish(b, s.Reactions, SubjectReactions)
	republish(b, s.Threads, SubjectThreads)
	republish(b, s.Preferences, SubjectPreferences)
	republish(b, s.Typing, SubjectTyping)
	republish(b, s.Sidebar, SubjectSidebar)
	republish(b, s.Drafts, SubjectDrafts)
	republish(b, s.System, SubjectSystem)
	republish(b, s.Dialogs, SubjectDialogs)
	republish(b, s.Bookmarks, SubjectBookmarks)
	republish(b, s.Groups, SubjectGroups)
	republish(b, s.Roles, SubjectRoles)
	republish(b, s.Cloud, SubjectCloud)
	republish(b, s.ScheduledPosts, SubjectScheduledPosts)
}

func republish[T any](b *Bridge, f *stream.Feed[T], subject string) {
	ch, cancel := f.Subscribe()
	b.cancels = append(b.cancels, cancel)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for v := range ch {
			raw, err := json.Marshal(v)
			if err != nil {
				log.Printf("bridge: marshal for %s: %v", subject, err)
				continue
			}
			if err := b.conn.Publish(subject, raw); err != nil {
				log.Printf("bridge: publish %s: %v", subject, err)
			}
		}
	}()
}

// Close detaches from the streams, flushes pending publishes and drains
// the connection. Safe to call more than once.
func (b *Bridge) Close() {
	b.once.Do(func() {
		for _, cancel := range b.cancels {
			cancel()
		}
		b.wg.Wait()
		if err := b.conn.Drain(); err != nil {
			log.Printf("bridge: drain: %v", err)
		}
	})
}
