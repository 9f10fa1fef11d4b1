// Package connection owns the single persistent WebSocket connection to
// the server: dialing, the authentication challenge, keepalive pings, and
// the reconnection policy for dropped sessions. Every inbound frame is
// republished as a protocol.RawEvent on one hot shared feed; consumers
// never see transport errors, only status transitions.
package connection

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/relaychat/sync-engine/internal/metrics"
	"github.com/relaychat/sync-engine/internal/protocol"
	"github.com/relaychat/sync-engine/internal/stream"
)

// Dialer opens a transport connection to url. The returned net.Conn must
// already be WebSocket-established; tests inject pipes here.
type Dialer func(ctx context.Context, url string) (net.Conn, error)

// Config holds tunable parameters for the connection manager.
type Config struct {
	URL   string // WebSocket endpoint, e.g. "wss://chat.example.com/api/ws"
	Token string // bearer token for the authentication challenge

	PingInterval time.Duration // how often to send keepalive pings
	StaleTimeout time.Duration // max silence after a ping before the link is declared dead
	DialTimeout  time.Duration // per-attempt dial deadline

	BackoffBase        time.Duration // first reconnect delay
	BackoffCeiling     time.Duration // cap for the doubling delay
	MaxBackoffAttempts int           // doubling attempts before the fixed cadence
	RetryCadence       time.Duration // fixed delay once doubling is exhausted

	Dialer Dialer // nil means gobwas ws.Dial
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:       30 * time.Second,
		StaleTimeout:       10 * time.Second,
		DialTimeout:        10 * time.Second,
		BackoffBase:        time.Second,
		BackoffCeiling:     30 * time.Second,
		MaxBackoffAttempts: 10,
		RetryCadence:       60 * time.Second,
	}
}

// link is one physical connection. A Manager goes through many links over
// its lifetime but holds at most one at a time.
type link struct {
	conn     net.Conn
	id       string
	writeMu  sync.Mutex
	lastRead atomic.Int64 // unix nanos of the last successful read
}

func (l *link) writePing() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return wsutil.WriteClientMessage(l.conn, ws.OpPing, nil)
}

func (l *link) writeText(data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return wsutil.WriteClientMessage(l.conn, ws.OpText, data)
}

// Manager maintains exactly one live connection and fans every inbound
// frame out on a shared RawEvent feed. Transport faults are retried
// transparently; consumers observe only events and status transitions.
type Manager struct {
	config Config

	events     *stream.Feed[protocol.RawEvent]
	statusFeed *stream.Feed[Status]

	mu     sync.Mutex
	status Status
	link   *link
	done   chan struct{} // closed by Disconnect; one per connect cycle
}

// NewManager creates a Manager. The event and status feeds exist from
// construction so consumers can subscribe before the first Connect.
func NewManager(config Config) *Manager {
	return &Manager{
		config:     config,
		events:     stream.NewFeed[protocol.RawEvent]("raw_events"),
		statusFeed: stream.NewFeed[Status]("connection_status"),
	}
}

// Events returns the hot shared feed of inbound raw events. Any number of
// consumers may subscribe; the transport is read exactly once regardless.
func (m *Manager) Events() *stream.Feed[protocol.RawEvent] {
	return m.events
}

// StatusFeed returns the feed of connection status transitions.
func (m *Manager) StatusFeed() *stream.Feed[Status] {
	return m.statusFeed
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	s := m.status
	m.mu.Unlock()
	return s
}

// IsConnected reports whether the connection is currently established.
func (m *Manager) IsConnected() bool {
	return m.Status() == StatusConnected
}

// Connect establishes the connection. It is idempotent: calling it while
// anything but Disconnected is a no-op. A failed first attempt returns the
// error and goes back to Disconnected — the reconnect policy only covers
// sessions that were once live.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.setStatusLocked(StatusConnecting)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	l, err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		m.setStatusLocked(StatusDisconnected)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	select {
	case <-done:
		// Disconnect won the race; drop the fresh link.
		m.mu.Unlock()
		l.conn.Close()
		return nil
	default:
	}
	m.link = l
	m.setStatusLocked(StatusConnected)
	m.mu.Unlock()

	log.Printf("connection: established session=%s url=%s", l.id, m.config.URL)
	m.startLoops(l, done)
	return nil
}

// Disconnect closes the transport, cancels any pending reconnect attempt
// and sets the status to Disconnected. Idempotent. A later Connect starts
// a fresh cycle on the same feeds.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.status == StatusDisconnected {
		m.mu.Unlock()
		return
	}
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	l := m.link
	m.link = nil
	m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()

	if l != nil {
		l.conn.Close()
		log.Printf("connection: session=%s disconnected", l.id)
	}
}

// Close disconnects and closes both feeds. The Manager cannot be reused
// afterwards.
func (m *Manager) Close() {
	m.Disconnect()
	m.events.Close()
	m.statusFeed.Close()
}

// setStatusLocked updates the status and publishes the transition. The
// caller must hold m.mu.
func (m *Manager) setStatusLocked(s Status) {
	if m.status == s {
		return
	}
	m.status = s
	if s == StatusConnected {
		metrics.ConnectionUp.Set(1)
	} else {
		metrics.ConnectionUp.Set(0)
	}
	m.statusFeed.Publish(s)
}

// dial opens the transport and performs the authentication challenge.
func (m *Manager) dial(ctx context.Context) (*link, error) {
	dialer := m.config.Dialer
	if dialer == nil {
		dialer = func(ctx context.Context, url string) (net.Conn, error) {
			conn, _, _, err := ws.Dial(ctx, url)
			return conn, err
		}
	}

	conn, err := dialer(ctx, m.config.URL)
	if err != nil {
		return nil, err
	}

	l := &link{conn: conn, id: uuid.NewString()}
	l.lastRead.Store(time.Now().UnixNano())

	if m.config.Token != "" {
		challenge, _ := json.Marshal(map[string]any{
			"action": "authentication_challenge",
			"seq":    1,
			"data":   map[string]string{"token": m.config.Token},
		})
		if err := l.writeText(challenge); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return l, nil
}

func (m *Manager) startLoops(l *link, done chan struct{}) {
	go m.readLoop(l, done)
	go m.pingLoop(l, done)
}

// readLoop reads frames off one link until it fails. Frames that do not
// parse are logged and skipped; the stream is never aborted by bad input.
func (m *Manager) readLoop(l *link, done chan struct{}) {
	for {
		data, err := wsutil.ReadServerText(l.conn)
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			m.handleDrop(l, done)
			return
		}

		l.lastRead.Store(time.Now().UnixNano())
		metrics.FramesTotal.Inc()

		ev, perr := protocol.ParseRawEvent(data)
		if perr != nil {
			log.Printf("connection: session=%s dropping unparseable frame: %v", l.id, perr)
			metrics.ParseFailuresTotal.Inc()
			continue
		}
		m.events.Publish(ev)
	}
}

// pingLoop sends keepalive pings and declares the link dead when nothing
// has been read for PingInterval+StaleTimeout. Closing the conn unblocks
// the read loop, which runs the drop handling.
func (m *Manager) pingLoop(l *link, done chan struct{}) {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			last := time.Unix(0, l.lastRead.Load())
			if time.Since(last) > m.config.PingInterval+m.config.StaleTimeout {
				log.Printf("connection: session=%s stale, last read %s ago",
					l.id, time.Since(last).Round(time.Second))
				l.conn.Close()
				return
			}
			if err := l.writePing(); err != nil {
				l.conn.Close()
				return
			}
		}
	}
}

// handleDrop transitions a live session to Reconnecting and starts the
// retry loop. Stale links (already replaced or intentionally closed) are
// ignored.
func (m *Manager) handleDrop(l *link, done chan struct{}) {
	m.mu.Lock()
	if m.link != l || m.status != StatusConnected {
		m.mu.Unlock()
		return
	}
	m.link = nil
	m.setStatusLocked(StatusReconnecting)
	m.mu.Unlock()

	l.conn.Close()
	log.Printf("connection: session=%s dropped, scheduling reconnect", l.id)
	go m.reconnectLoop(done)
}

// reconnectLoop retries until a dial succeeds or Disconnect is called.
// Delays double from BackoffBase up to BackoffCeiling with random jitter;
// after MaxBackoffAttempts the loop settles into the fixed RetryCadence.
func (m *Manager) reconnectLoop(done chan struct{}) {
	for attempt := 0; ; attempt++ {
		delay := m.backoffDelay(attempt)

		select {
		case <-done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.config.DialTimeout)
		l, err := m.dial(ctx)
		cancel()
		if err != nil {
			log.Printf("connection: reconnect attempt %d failed: %v", attempt+1, err)
			continue
		}

		m.mu.Lock()
		select {
		case <-done:
			m.mu.Unlock()
			l.conn.Close()
			return
		default:
		}
		m.link = l
		m.setStatusLocked(StatusConnected)
		m.mu.Unlock()

		metrics.ReconnectsTotal.Inc()
		log.Printf("connection: session=%s reconnected after %d attempt(s)", l.id, attempt+1)
		m.startLoops(l, done)
		return
	}
}

// backoffDelay computes the delay before the given attempt. Jitter of up
// to half the base delay avoids synchronized reconnect storms across many
// clients.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	if attempt >= m.config.MaxBackoffAttempts {
		return m.config.RetryCadence
	}
	d := m.config.BackoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= m.config.BackoffCeiling {
			d = m.config.BackoffCeiling
			break
		}
	}
	return d + time.Duration(rand.Int63n(int64(d/2+1)))
}
