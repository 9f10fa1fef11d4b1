// Package protocol defines the wire format of server-push events received
// over the realtime WebSocket connection. Every inbound frame is a JSON
// object with an "event" discriminator, an opaque "data" payload, and an
// optional "broadcast" block describing the routing scope the server used.
package protocol

import (
	"encoding/json"
	"fmt"
	"log"
)

// ---------------------------------------------------------------------------
// Event name constants
// ---------------------------------------------------------------------------

// Post events.
const (
	EventPosted      = "posted"
	EventPostEdited  = "post_edited"
	EventPostDeleted = "post_deleted"
	EventPostUnread  = "post_unread"
)

// Channel events.
const (
	EventChannelCreated       = "channel_created"
	EventChannelUpdated       = "channel_updated"
	EventChannelDeleted       = "channel_deleted"
	EventChannelConverted     = "channel_converted"
	EventChannelMemberUpdated = "channel_member_updated"
)

// Team events.
const (
	EventTeamUpdated = "team_updated"
	EventTeamDeleted = "team_deleted"
	EventAddedToTeam = "added_to_team"
	EventLeftTeam    = "left_team"
)

// User events.
const (
	EventUserAdded       = "user_added"
	EventUserUpdated     = "user_updated"
	EventUserRemoved     = "user_removed"
	EventUserRoleUpdated = "user_role_updated"
	EventStatusChange    = "status_change"
)

// Reaction events.
const (
	EventReactionAdded   = "reaction_added"
	EventReactionRemoved = "reaction_removed"
)

// Thread events.
const (
	EventThreadUpdated       = "thread_updated"
	EventThreadReadChanged   = "thread_read_changed"
	EventThreadFollowChanged = "thread_follow_changed"
)

// Preference events.
const (
	EventPreferencesChanged = "preferences_changed"
	EventPreferencesDeleted = "preferences_deleted"
)

// Typing.
const EventTyping = "typing"

// Sidebar events.
const (
	EventSidebarCategoryCreated      = "sidebar_category_created"
	EventSidebarCategoryUpdated      = "sidebar_category_updated"
	EventSidebarCategoryDeleted      = "sidebar_category_deleted"
	EventSidebarCategoryOrderUpdated = "sidebar_category_order_updated"
)

// Draft events.
const (
	EventDraftCreated = "draft_created"
	EventDraftUpdated = "draft_updated"
	EventDraftDeleted = "draft_deleted"
)

// System events.
const (
	EventHello          = "hello"
	EventConfigChanged  = "config_changed"
	EventLicenseChanged = "license_changed"
)

// Interactive dialog events.
const EventOpenDialog = "open_dialog"

// Channel bookmark events.
const (
	EventBookmarkCreated = "channel_bookmark_created"
	EventBookmarkUpdated = "channel_bookmark_updated"
	EventBookmarkDeleted = "channel_bookmark_deleted"
	EventBookmarkSorted  = "channel_bookmark_sorted"
)

// Group events.
const (
	EventReceivedGroup      = "received_group"
	EventGroupMemberAdded   = "group_member_added"
	EventGroupMemberDeleted = "group_member_deleted"
)

// Role events.
const EventRoleUpdated = "role_updated"

// Cloud events.
const (
	EventCloudPaymentStatusUpdated = "cloud_payment_status_updated"
	EventCloudSubscriptionChanged  = "cloud_subscription_changed"
)

// Scheduled post events.
const (
	EventScheduledPostCreated = "scheduled_post_created"
	EventScheduledPostUpdated = "scheduled_post_updated"
	EventScheduledPostDeleted = "scheduled_post_deleted"
)

// ---------------------------------------------------------------------------
// RawEvent
// ---------------------------------------------------------------------------

// Broadcast describes the routing scope the server applied to an event.
// All fields are optional; an empty Broadcast means the event was pushed
// to the whole session.
type Broadcast struct {
	ChannelID    string          `json:"channel_id,omitempty"`
	TeamID       string          `json:"team_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	ConnectionID string          `json:"connection_id,omitempty"`
	OmitUsers    map[string]bool `json:"omit_users,omitempty"`
}

// RawEvent is a single unparsed inbound event. It is immutable once
// constructed: the connection layer builds one per frame and hands it to
// every downstream pipeline by value.
type RawEvent struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Broadcast Broadcast      `json:"broadcast"`
}

// ParseRawEvent decodes one wire frame into a RawEvent. Frames without an
// "event" field are rejected; everything else is accepted as-is, including
// event names this client has never heard of (they simply will not match
// any category filter downstream).
func ParseRawEvent(data []byte) (RawEvent, error) {
	var ev RawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RawEvent{}, fmt.Errorf("protocol: failed to parse event frame: %w", err)
	}
	if ev.Event == "" {
		return RawEvent{}, fmt.Errorf("protocol: missing or empty \"event\" field")
	}
	return ev, nil
}

// ---------------------------------------------------------------------------
// Defensive field accessors
// ---------------------------------------------------------------------------

// StringData returns the string value stored under key in the event data,
// or "" if the key is absent or not a string.
func (e RawEvent) StringData(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

// BoolData returns the bool value stored under key, or false if the key is
// absent or not a bool.
func (e RawEvent) BoolData(key string) bool {
	if v, ok := e.Data[key].(bool); ok {
		return v
	}
	return false
}

// IntData returns the numeric value stored under key as an int64. JSON
// numbers decode as float64, so the value is truncated toward zero.
func (e RawEvent) IntData(key string) int64 {
	if v, ok := e.Data[key].(float64); ok {
		return int64(v)
	}
	return 0
}

// DecodeEmbedded decodes a JSON document that the server embedded as a
// string field inside the event data (e.g. a serialized post). A missing
// field or a decode failure is not an error: the diagnostic is logged and
// false is returned so the caller can ship the event with the sub-field
// absent. Partial information beats a dropped event.
func (e RawEvent) DecodeEmbedded(key string, dst any) bool {
	raw := e.StringData(key)
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Printf("protocol: event=%s malformed embedded %q field: %v", e.Event, key, err)
		return false
	}
	return true
}
