package events

import "github.com/relaychat/sync-engine/internal/protocol"

// GroupEventType classifies a user-group event.
type GroupEventType string

const (
	GroupReceived      GroupEventType = "received"
	GroupMemberAdded   GroupEventType = "member_added"
	GroupMemberDeleted GroupEventType = "member_deleted"
)

// Group is a named collection of users.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// GroupEvent is one typed group event. Membership events carry the user
// the change applies to.
type GroupEvent struct {
	Type    GroupEventType
	Group   *Group
	GroupID string
	UserID  string
}

var groupEventNames = map[string]bool{
	protocol.EventReceivedGroup:      true,
	protocol.EventGroupMemberAdded:   true,
	protocol.EventGroupMemberDeleted: true,
}

func parseGroupEvent(ev protocol.RawEvent) (GroupEvent, bool) {
	out := GroupEvent{UserID: ev.Broadcast.UserID}
	switch ev.Event {
	case protocol.EventReceivedGroup:
		out.Type = GroupReceived
	case protocol.EventGroupMemberAdded:
		out.Type = GroupMemberAdded
	case protocol.EventGroupMemberDeleted:
		out.Type = GroupMemberDeleted
	}

	var g Group
	if ev.DecodeEmbedded("group", &g) {
		out.Group = &g
		out.GroupID = g.ID
	}
	if id := ev.StringData("group_id"); id != "" {
		out.GroupID = id
	}
	if id := ev.StringData("user_id"); id != "" {
		out.UserID = id
	}
	return out, true
}
