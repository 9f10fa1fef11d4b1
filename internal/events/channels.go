package events

import "github.com/relaychat/sync-engine/internal/protocol"

// ChannelEventType classifies a channel event.
type ChannelEventType string

const (
	ChannelCreated       ChannelEventType = "created"
	ChannelUpdated       ChannelEventType = "updated"
	ChannelDeleted       ChannelEventType = "deleted"
	ChannelConverted     ChannelEventType = "converted"
	ChannelMemberUpdated ChannelEventType = "member_updated"
)

// Channel is the payload shape of a channel.
type Channel struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	CreateAt    int64  `json:"create_at"`
	UpdateAt    int64  `json:"update_at"`
	DeleteAt    int64  `json:"delete_at"`
}

// ChannelEvent is one typed channel event.
type ChannelEvent struct {
	Type      ChannelEventType
	Channel   *Channel
	ChannelID string
	TeamID    string
}

var channelEventNames = map[string]bool{
	protocol.EventChannelCreated:       true,
	protocol.EventChannelUpdated:       true,
	protocol.EventChannelDeleted:       true,
	protocol.EventChannelConverted:     true,
	protocol.EventChannelMemberUpdated: true,
}

func parseChannelEvent(ev protocol.RawEvent) (ChannelEvent, bool) {
	out := ChannelEvent{
		ChannelID: ev.Broadcast.ChannelID,
		TeamID:    ev.Broadcast.TeamID,
	}
	switch ev.Event {
	case protocol.EventChannelCreated:
		out.Type = ChannelCreated
	case protocol.EventChannelUpdated:
		out.Type = ChannelUpdated
	case protocol.EventChannelDeleted:
		out.Type = ChannelDeleted
	case protocol.EventChannelConverted:
		out.Type = ChannelConverted
	case protocol.EventChannelMemberUpdated:
		out.Type = ChannelMemberUpdated
	}

	var ch Channel
	if ev.DecodeEmbedded("channel", &ch) {
		out.Channel = &ch
		out.ChannelID = ch.ID
		if out.TeamID == "" {
			out.TeamID = ch.TeamID
		}
	}
	if id := ev.StringData("channel_id"); id != "" {
		out.ChannelID = id
	}
	if tm := ev.StringData("team_id"); tm != "" {
		out.TeamID = tm
	}
	return out, true
}
