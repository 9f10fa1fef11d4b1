package events

import (
	"github.com/relaychat/sync-engine/internal/protocol"
	"github.com/relaychat/sync-engine/internal/stream"
)

// TypingKey identifies one typing indicator: a user typing in a channel,
// optionally inside a thread. Each key owns at most one live window.
type TypingKey struct {
	ChannelID string
	UserID    string
	ThreadID  string
}

// TypingEvent reports a typing indicator turning on or off.
type TypingEvent struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id,omitempty"`
	IsTyping  bool   `json:"is_typing"`
}

var typingEventNames = map[string]bool{
	protocol.EventTyping: true,
}

func parseTypingKey(ev protocol.RawEvent) (TypingKey, bool) {
	key := TypingKey{
		ChannelID: ev.Broadcast.ChannelID,
		UserID:    ev.StringData("user_id"),
		ThreadID:  ev.StringData("parent_id"),
	}
	if ch := ev.StringData("channel_id"); ch != "" {
		key.ChannelID = ch
	}
	if key.ChannelID == "" || key.UserID == "" {
		return TypingKey{}, false
	}
	return key, true
}

func typingEventFromState(st stream.KeyState[TypingKey]) TypingEvent {
	return TypingEvent{
		ChannelID: st.Key.ChannelID,
		UserID:    st.Key.UserID,
		ThreadID:  st.Key.ThreadID,
		IsTyping:  st.Active,
	}
}
