package models

import (
	"database/sql"
	"time"
)

// MessageKind classifies message payloads.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageImage  MessageKind = "image"
	MessageFile   MessageKind = "file"
	MessageSystem MessageKind = "system"
)

// Valid reports whether the kind is one of the known message kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return true
	}
	return false
}

// DeletedPlaceholder replaces message content on soft delete. Rows are
// never removed so ids and ordering stay stable for pagination cursors.
const DeletedPlaceholder = "This message was deleted."

// Message is a chat message. System-kind messages are attributed to the
// user whose action produced them and are otherwise ordinary rows.
type Message struct {
	ID        int64          `db:"message_id" json:"message_id"`
	RoomID    int64          `db:"room_id" json:"room_id"`
	SenderID  int64          `db:"sender_id" json:"sender_id"`
	Content   string         `db:"content" json:"content"`
	Kind      MessageKind    `db:"kind" json:"kind"`
	FileURL   sql.NullString `db:"file_url" json:"-"`
	IsDeleted bool           `db:"is_deleted" json:"is_deleted"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt sql.NullTime   `db:"updated_at" json:"-"`
}
