package events

import "github.com/relaychat/sync-engine/internal/protocol"

// BookmarkEventType classifies a channel bookmark event.
type BookmarkEventType string

const (
	BookmarkCreated BookmarkEventType = "created"
	BookmarkUpdated BookmarkEventType = "updated"
	BookmarkDeleted BookmarkEventType = "deleted"
	BookmarkSorted  BookmarkEventType = "sorted"
)

// Bookmark is a pinned link or file in a channel.
type Bookmark struct {
	ID          string `json:"id"`
	ChannelID   string `json:"channel_id"`
	OwnerID     string `json:"owner_id"`
	DisplayName string `json:"display_name"`
	LinkURL     string `json:"link_url,omitempty"`
	Type        string `json:"type"`
	SortOrder   int64  `json:"sort_order"`
}

// BookmarkEvent is one typed bookmark event. Sorted events carry the
// channel's full bookmark set in its new order instead of a single
// bookmark.
type BookmarkEvent struct {
	Type      BookmarkEventType
	Bookmark  *Bookmark
	Bookmarks []Bookmark
	ChannelID string
}

var bookmarkEventNames = map[string]bool{
	protocol.EventBookmarkCreated: true,
	protocol.EventBookmarkUpdated: true,
	protocol.EventBookmarkDeleted: true,
	protocol.EventBookmarkSorted:  true,
}

func parseBookmarkEvent(ev protocol.RawEvent) (BookmarkEvent, bool) {
	out := BookmarkEvent{ChannelID: ev.Broadcast.ChannelID}
	switch ev.Event {
	case protocol.EventBookmarkCreated:
		out.Type = BookmarkCreated
	case protocol.EventBookmarkUpdated:
		out.Type = BookmarkUpdated
	case protocol.EventBookmarkDeleted:
		out.Type = BookmarkDeleted
	case protocol.EventBookmarkSorted:
		out.Type = BookmarkSorted
	}

	var b Bookmark
	if ev.DecodeEmbedded("bookmark", &b) {
		out.Bookmark = &b
		if out.ChannelID == "" {
			out.ChannelID = b.ChannelID
		}
	}
	if ev.DecodeEmbedded("bookmarks", &out.Bookmarks) && out.ChannelID == "" && len(out.Bookmarks) > 0 {
		out.ChannelID = out.Bookmarks[0].ChannelID
	}
	if id := ev.StringData("channel_id"); id != "" {
		out.ChannelID = id
	}
	return out, true
}
