package events

import "github.com/relaychat/sync-engine/internal/protocol"

// PreferenceEventType classifies a preference event.
type PreferenceEventType string

const (
	PreferencesChanged PreferenceEventType = "changed"
	PreferencesDeleted PreferenceEventType = "deleted"
)

// Preference is a single user preference entry.
type Preference struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Value    string `json:"value"`
}

// PreferenceEvent carries the batch of preferences the server changed or
// deleted in one write.
type PreferenceEvent struct {
	Type        PreferenceEventType
	Preferences []Preference
}

var preferenceEventNames = map[string]bool{
	protocol.EventPreferencesChanged: true,
	protocol.EventPreferencesDeleted: true,
}

func parsePreferenceEvent(ev protocol.RawEvent) (PreferenceEvent, bool) {
	out := PreferenceEvent{}
	switch ev.Event {
	case protocol.EventPreferencesChanged:
		out.Type = PreferencesChanged
	case protocol.EventPreferencesDeleted:
		out.Type = PreferencesDeleted
	}
	ev.DecodeEmbedded("preferences", &out.Preferences)
	return out, true
}
