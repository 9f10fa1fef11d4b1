package events

import "github.com/relaychat/sync-engine/internal/protocol"

// SidebarEventType classifies a sidebar category event.
type SidebarEventType string

const (
	SidebarCategoryCreated      SidebarEventType = "created"
	SidebarCategoryUpdated      SidebarEventType = "updated"
	SidebarCategoryDeleted      SidebarEventType = "deleted"
	SidebarCategoryOrderUpdated SidebarEventType = "order_updated"
)

// SidebarCategory is a user-defined grouping of channels in the sidebar.
type SidebarCategory struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	TeamID      string   `json:"team_id"`
	DisplayName string   `json:"display_name"`
	ChannelIDs  []string `json:"channel_ids,omitempty"`
}

// SidebarEvent is one typed sidebar event. Order carries the new category
// ordering for order_updated events.
type SidebarEvent struct {
	Type       SidebarEventType
	Category   *SidebarCategory
	CategoryID string
	TeamID     string
	UserID     string
	Order      []string
}

var sidebarEventNames = map[string]bool{
	protocol.EventSidebarCategoryCreated:      true,
	protocol.EventSidebarCategoryUpdated:      true,
	protocol.EventSidebarCategoryDeleted:      true,
	protocol.EventSidebarCategoryOrderUpdated: true,
}

func parseSidebarEvent(ev protocol.RawEvent) (SidebarEvent, bool) {
	out := SidebarEvent{
		TeamID: ev.Broadcast.TeamID,
		UserID: ev.Broadcast.UserID,
	}
	switch ev.Event {
	case protocol.EventSidebarCategoryCreated:
		out.Type = SidebarCategoryCreated
	case protocol.EventSidebarCategoryUpdated:
		out.Type = SidebarCategoryUpdated
	case protocol.EventSidebarCategoryDeleted:
		out.Type = SidebarCategoryDeleted
	case protocol.EventSidebarCategoryOrderUpdated:
		out.Type = SidebarCategoryOrderUpdated
	}

	var cat SidebarCategory
	if ev.DecodeEmbedded("category", &cat) {
		out.Category = &cat
		out.CategoryID = cat.ID
	}
	if id := ev.StringData("category_id"); id != "" {
		out.CategoryID = id
	}
	ev.DecodeEmbedded("order", &out.Order)
	return out, true
}
