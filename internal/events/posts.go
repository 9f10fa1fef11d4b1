package events

import "github.com/relaychat/sync-engine/internal/protocol"

// PostEventType classifies a post event.
type PostEventType string

const (
	PostCreated PostEventType = "created"
	PostEdited  PostEventType = "edited"
	PostDeleted PostEventType = "deleted"
	PostUnread  PostEventType = "unread"
)

// Post is the payload shape of a message post. The sync layer treats it
// as mostly opaque; only identity and placement fields are interpreted.
type Post struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channel_id"`
	RootID    string     `json:"root_id"`
	UserID    string     `json:"user_id"`
	Message   string     `json:"message"`
	CreateAt  int64      `json:"create_at"`
	UpdateAt  int64      `json:"update_at"`
	DeleteAt  int64      `json:"delete_at"`
	Reactions []Reaction `json:"reactions,omitempty"`
}

// PostEvent is one typed post event. Post is nil when the embedded post
// document failed to parse; the identity fields still carry whatever the
// frame provided.
type PostEvent struct {
	Type      PostEventType
	Post      *Post
	PostID    string
	ChannelID string
	TeamID    string
}

var postEventNames = map[string]bool{
	protocol.EventPosted:      true,
	protocol.EventPostEdited:  true,
	protocol.EventPostDeleted: true,
	protocol.EventPostUnread:  true,
}

func parsePostEvent(ev protocol.RawEvent) (PostEvent, bool) {
	out := PostEvent{
		ChannelID: ev.Broadcast.ChannelID,
		TeamID:    ev.Broadcast.TeamID,
	}
	switch ev.Event {
	case protocol.EventPosted:
		out.Type = PostCreated
	case protocol.EventPostEdited:
		out.Type = PostEdited
	case protocol.EventPostDeleted:
		out.Type = PostDeleted
	case protocol.EventPostUnread:
		out.Type = PostUnread
	}

	var post Post
	if ev.DecodeEmbedded("post", &post) {
		out.Post = &post
		out.PostID = post.ID
		if out.ChannelID == "" {
			out.ChannelID = post.ChannelID
		}
	} else {
		out.PostID = ev.StringData("post_id")
	}
	if ch := ev.StringData("channel_id"); ch != "" {
		out.ChannelID = ch
	}
	if tm := ev.StringData("team_id"); tm != "" {
		out.TeamID = tm
	}
	return out, true
}
