package events

import "github.com/relaychat/sync-engine/internal/protocol"

// DraftEventType classifies a draft event.
type DraftEventType string

const (
	DraftCreated DraftEventType = "created"
	DraftUpdated DraftEventType = "updated"
	DraftDeleted DraftEventType = "deleted"
)

// Draft is an unsent message draft, keyed by channel and optional thread
// root.
type Draft struct {
	ChannelID string `json:"channel_id"`
	RootID    string `json:"root_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	UpdateAt  int64  `json:"update_at"`
}

// DraftEvent is one typed draft event.
type DraftEvent struct {
	Type      DraftEventType
	Draft     *Draft
	ChannelID string
	RootID    string
}

var draftEventNames = map[string]bool{
	protocol.EventDraftCreated: true,
	protocol.EventDraftUpdated: true,
	protocol.EventDraftDeleted: true,
}

func parseDraftEvent(ev protocol.RawEvent) (DraftEvent, bool) {
	out := DraftEvent{ChannelID: ev.Broadcast.ChannelID}
	switch ev.Event {
	case protocol.EventDraftCreated:
		out.Type = DraftCreated
	case protocol.EventDraftUpdated:
		out.Type = DraftUpdated
	case protocol.EventDraftDeleted:
		out.Type = DraftDeleted
	}

	var d Draft
	if ev.DecodeEmbedded("draft", &d) {
		out.Draft = &d
		out.ChannelID = d.ChannelID
		out.RootID = d.RootID
	}
	if id := ev.StringData("channel_id"); id != "" {
		out.ChannelID = id
	}
	if id := ev.StringData("root_id"); id != "" {
		out.RootID = id
	}
	return out, true
}
