package events

import "github.com/relaychat/sync-engine/internal/protocol"

// SystemEventType classifies a system-level event.
type SystemEventType string

const (
	SystemHello          SystemEventType = "hello"
	SystemConfigChanged  SystemEventType = "config_changed"
	SystemLicenseChanged SystemEventType = "license_changed"
)

// SystemEvent carries server-level notifications. The data is opaque to
// the sync layer and handed through as-is.
type SystemEvent struct {
	Type SystemEventType
	Data map[string]any
}

var systemEventNames = map[string]bool{
	protocol.EventHello:          true,
	protocol.EventConfigChanged:  true,
	protocol.EventLicenseChanged: true,
}

func parseSystemEvent(ev protocol.RawEvent) (SystemEvent, bool) {
	out := SystemEvent{Data: ev.Data}
	switch ev.Event {
	case protocol.EventHello:
		out.Type = SystemHello
	case protocol.EventConfigChanged:
		out.Type = SystemConfigChanged
	case protocol.EventLicenseChanged:
		out.Type = SystemLicenseChanged
	}
	return out, true
}

// DialogEvent asks the client to open an interactive dialog. The dialog
// definition is opaque payload.
type DialogEvent struct {
	TriggerID string
	URL       string
	Dialog    map[string]any
}

var dialogEventNames = map[string]bool{
	protocol.EventOpenDialog: true,
}

func parseDialogEvent(ev protocol.RawEvent) (DialogEvent, bool) {
	out := DialogEvent{
		TriggerID: ev.StringData("trigger_id"),
		URL:       ev.StringData("url"),
	}
	ev.DecodeEmbedded("dialog", &out.Dialog)
	return out, true
}

// Role is a named permission set.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// RoleEvent reports a role definition change.
type RoleEvent struct {
	Role   *Role
	RoleID string
}

var roleEventNames = map[string]bool{
	protocol.EventRoleUpdated: true,
}

func parseRoleEvent(ev protocol.RawEvent) (RoleEvent, bool) {
	out := RoleEvent{}
	var r Role
	if ev.DecodeEmbedded("role", &r) {
		out.Role = &r
		out.RoleID = r.ID
	}
	return out, true
}

// CloudEventType classifies a cloud billing event.
type CloudEventType string

const (
	CloudPaymentStatusUpdated CloudEventType = "payment_status_updated"
	CloudSubscriptionChanged  CloudEventType = "subscription_changed"
)

// CloudEvent carries cloud subscription notifications; payload opaque.
type CloudEvent struct {
	Type CloudEventType
	Data map[string]any
}

var cloudEventNames = map[string]bool{
	protocol.EventCloudPaymentStatusUpdated: true,
	protocol.EventCloudSubscriptionChanged:  true,
}

func parseCloudEvent(ev protocol.RawEvent) (CloudEvent, bool) {
	out := CloudEvent{Data: ev.Data}
	switch ev.Event {
	case protocol.EventCloudPaymentStatusUpdated:
		out.Type = CloudPaymentStatusUpdated
	case protocol.EventCloudSubscriptionChanged:
		out.Type = CloudSubscriptionChanged
	}
	return out, true
}
