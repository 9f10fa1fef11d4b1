package events

import "github.com/relaychat/sync-engine/internal/protocol"

// ThreadEventType classifies a thread event.
type ThreadEventType string

const (
	ThreadUpdated       ThreadEventType = "updated"
	ThreadReadChanged   ThreadEventType = "read_changed"
	ThreadFollowChanged ThreadEventType = "follow_changed"
)

// Thread is the payload shape of a followed thread.
type Thread struct {
	ID           string   `json:"id"`
	ReplyCount   int64    `json:"reply_count"`
	LastReplyAt  int64    `json:"last_reply_at"`
	Participants []string `json:"participants,omitempty"`
}

// ThreadEvent is one typed thread event. Timestamp carries the read mark
// for read_changed; Following carries the new follow state for
// follow_changed.
type ThreadEvent struct {
	Type      ThreadEventType
	Thread    *Thread
	ThreadID  string
	TeamID    string
	Timestamp int64
	Following bool
}

var threadEventNames = map[string]bool{
	protocol.EventThreadUpdated:       true,
	protocol.EventThreadReadChanged:   true,
	protocol.EventThreadFollowChanged: true,
}

func parseThreadEvent(ev protocol.RawEvent) (ThreadEvent, bool) {
	out := ThreadEvent{
		TeamID:    ev.Broadcast.TeamID,
		Timestamp: ev.IntData("timestamp"),
		Following: ev.BoolData("state"),
	}
	switch ev.Event {
	case protocol.EventThreadUpdated:
		out.Type = ThreadUpdated
	case protocol.EventThreadReadChanged:
		out.Type = ThreadReadChanged
	case protocol.EventThreadFollowChanged:
		out.Type = ThreadFollowChanged
	}

	var th Thread
	if ev.DecodeEmbedded("thread", &th) {
		out.Thread = &th
		out.ThreadID = th.ID
	}
	if id := ev.StringData("thread_id"); id != "" {
		out.ThreadID = id
	}
	return out, true
}
