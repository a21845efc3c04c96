package models

// Event types pushed to room subscribers.
const (
	EventMessage = "MESSAGE"
	EventRead    = "READ"
	EventDelete  = "DELETE"
)

// RoomEvent is broadcast through websockets to a room's subscribers.
// Delivery is best-effort and at-most-once; clients recover missed events
// by re-fetching after reconnect.
type RoomEvent struct {
	Type       string      `json:"type"`
	RoomID     int64       `json:"room_id"`
	SenderID   int64       `json:"sender_id"`
	SenderName string      `json:"sender_name,omitempty"`
	Content    string      `json:"content,omitempty"`
	Kind       MessageKind `json:"kind,omitempty"`
	MessageID  int64       `json:"message_id,omitempty"`
}
