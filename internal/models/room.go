package models

import (
	"database/sql"
	"time"
)

// RoomKind distinguishes 1:1 rooms from group rooms.
type RoomKind string

const (
	RoomPersonal RoomKind = "personal"
	RoomGroup    RoomKind = "group"
)

// Valid reports whether the kind is one of the known room kinds.
func (k RoomKind) Valid() bool {
	return k == RoomPersonal || k == RoomGroup
}

// Room is a container for a message stream and a membership roster.
// A personal room has exactly two members for its entire lifetime.
type Room struct {
	ID            int64          `db:"room_id" json:"room_id"`
	Name          sql.NullString `db:"name" json:"-"`
	Kind          RoomKind       `db:"kind" json:"kind"`
	LastMessageAt sql.NullTime   `db:"last_message_at" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Member grants a user access to a room and carries the read watermark.
// A null last_read_at means the user has never read; unread math falls
// back to joined_at.
type Member struct {
	ID         int64        `db:"member_id" json:"member_id"`
	RoomID     int64        `db:"room_id" json:"room_id"`
	UserID     int64        `db:"user_id" json:"user_id"`
	JoinedAt   time.Time    `db:"joined_at" json:"joined_at"`
	LastReadAt sql.NullTime `db:"last_read_at" json:"last_read_at,omitempty"`
}
