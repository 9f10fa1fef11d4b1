package events

import "github.com/relaychat/sync-engine/internal/protocol"

// TeamEventType classifies a team event.
type TeamEventType string

const (
	TeamUpdated TeamEventType = "updated"
	TeamDeleted TeamEventType = "deleted"
	TeamJoined  TeamEventType = "joined"
	TeamLeft    TeamEventType = "left"
)

// Team is the payload shape of a team.
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	UpdateAt    int64  `json:"update_at"`
	DeleteAt    int64  `json:"delete_at"`
}

// TeamEvent is one typed team event. Membership events carry the user
// the change applies to.
type TeamEvent struct {
	Type   TeamEventType
	Team   *Team
	TeamID string
	UserID string
}

var teamEventNames = map[string]bool{
	protocol.EventTeamUpdated: true,
	protocol.EventTeamDeleted: true,
	protocol.EventAddedToTeam: true,
	protocol.EventLeftTeam:    true,
}

func parseTeamEvent(ev protocol.RawEvent) (TeamEvent, bool) {
	out := TeamEvent{
		TeamID: ev.Broadcast.TeamID,
		UserID: ev.Broadcast.UserID,
	}
	switch ev.Event {
	case protocol.EventTeamUpdated:
		out.Type = TeamUpdated
	case protocol.EventTeamDeleted:
		out.Type = TeamDeleted
	case protocol.EventAddedToTeam:
		out.Type = TeamJoined
	case protocol.EventLeftTeam:
		out.Type = TeamLeft
	}

	var team Team
	if ev.DecodeEmbedded("team", &team) {
		out.Team = &team
		out.TeamID = team.ID
	}
	if id := ev.StringData("team_id"); id != "" {
		out.TeamID = id
	}
	if id := ev.StringData("user_id"); id != "" {
		out.UserID = id
	}
	return out, true
}
