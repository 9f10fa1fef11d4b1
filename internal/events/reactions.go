package events

import "github.com/relaychat/sync-engine/internal/protocol"

// ReactionEventType classifies a reaction event.
type ReactionEventType string

const (
	ReactionAdded   ReactionEventType = "added"
	ReactionRemoved ReactionEventType = "removed"
)

// Reaction is a single emoji reaction on a post.
type Reaction struct {
	UserID    string `json:"user_id"`
	PostID    string `json:"post_id"`
	EmojiName string `json:"emoji_name"`
	CreateAt  int64  `json:"create_at"`
}

// ReactionEvent is one typed reaction event.
type ReactionEvent struct {
	Type     ReactionEventType
	Reaction *Reaction
	PostID   string
}

var reactionEventNames = map[string]bool{
	protocol.EventReactionAdded:   true,
	protocol.EventReactionRemoved: true,
}

func parseReactionEvent(ev protocol.RawEvent) (ReactionEvent, bool) {
	out := ReactionEvent{}
	switch ev.Event {
	case protocol.EventReactionAdded:
		out.Type = ReactionAdded
	case protocol.EventReactionRemoved:
		out.Type = ReactionRemoved
	}

	var r Reaction
	if ev.DecodeEmbedded("reaction", &r) {
		out.Reaction = &r
		out.PostID = r.PostID
	}
	if id := ev.StringData("post_id"); id != "" {
		out.PostID = id
	}
	return out, true
}
