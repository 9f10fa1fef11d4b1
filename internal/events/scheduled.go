package events

import "github.com/relaychat/sync-engine/internal/protocol"

// ScheduledPostEventType classifies a scheduled-post event.
type ScheduledPostEventType string

const (
	ScheduledPostCreated ScheduledPostEventType = "created"
	ScheduledPostUpdated ScheduledPostEventType = "updated"
	ScheduledPostDeleted ScheduledPostEventType = "deleted"
)

// ScheduledPost is a post queued for future delivery.
type ScheduledPost struct {
	ID          string `json:"id"`
	ChannelID   string `json:"channel_id"`
	RootID      string `json:"root_id"`
	Message     string `json:"message"`
	ScheduledAt int64  `json:"scheduled_at"`
}

// ScheduledPostEvent is one typed scheduled-post event.
type ScheduledPostEvent struct {
	Type ScheduledPostEventType
	Post *ScheduledPost
}

var scheduledPostEventNames = map[string]bool{
	protocol.EventScheduledPostCreated: true,
	protocol.EventScheduledPostUpdated: true,
	protocol.EventScheduledPostDeleted: true,
}

func parseScheduledPostEvent(ev protocol.RawEvent) (ScheduledPostEvent, bool) {
	out := ScheduledPostEvent{}
	switch ev.Event {
	case protocol.EventScheduledPostCreated:
		out.Type = ScheduledPostCreated
	case protocol.EventScheduledPostUpdated:
		out.Type = ScheduledPostUpdated
	case protocol.EventScheduledPostDeleted:
		out.Type = ScheduledPostDeleted
	}
	var sp ScheduledPost
	if ev.DecodeEmbedded("scheduled_post", &sp) {
		out.Post = &sp
	}
	return out, true
}
