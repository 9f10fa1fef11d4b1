package events

import "github.com/relaychat/sync-engine/internal/protocol"

// UserEventType classifies a user event.
type UserEventType string

const (
	UserAdded       UserEventType = "added"
	UserUpdated     UserEventType = "updated"
	UserRemoved     UserEventType = "removed"
	UserRoleUpdated UserEventType = "role_updated"
	UserStatus      UserEventType = "status"
)

// User is the payload shape of a user profile.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Roles     string `json:"roles"`
	UpdateAt  int64  `json:"update_at"`
}

// UserEvent is one typed user event. Status carries the wire-level
// presence value for UserStatus events; profile keeps the serialized
// profile document for duplicate suppression.
type UserEvent struct {
	Type   UserEventType
	User   *User
	UserID string
	Status string

	profile string
}

// sameUserEvent reports whether two consecutive user events carry the
// same information and the second can be suppressed.
func sameUserEvent(prev, cur UserEvent) bool {
	return prev.Type == cur.Type &&
		prev.UserID == cur.UserID &&
		prev.Status == cur.Status &&
		prev.profile == cur.profile
}

var userEventNames = map[string]bool{
	protocol.EventUserAdded:       true,
	protocol.EventUserUpdated:     true,
	protocol.EventUserRemoved:     true,
	protocol.EventUserRoleUpdated: true,
	protocol.EventStatusChange:    true,
}

func parseUserEvent(ev protocol.RawEvent) (UserEvent, bool) {
	out := UserEvent{UserID: ev.Broadcast.UserID}
	switch ev.Event {
	case protocol.EventUserAdded:
		out.Type = UserAdded
	case protocol.EventUserUpdated:
		out.Type = UserUpdated
	case protocol.EventUserRemoved:
		out.Type = UserRemoved
	case protocol.EventUserRoleUpdated:
		out.Type = UserRoleUpdated
	case protocol.EventStatusChange:
		out.Type = UserStatus
		out.Status = ev.StringData("status")
	}

	var user User
	if ev.DecodeEmbedded("user", &user) {
		out.User = &user
		out.UserID = user.ID
		out.profile = ev.StringData("user")
	}
	if id := ev.StringData("user_id"); id != "" {
		out.UserID = id
	}
	return out, true
}
