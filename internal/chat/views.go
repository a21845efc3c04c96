package chat

import (
	"time"

	"club-chat-service/internal/models"
)

// MemberInfo is the API view of a membership row joined with the profile.
type MemberInfo struct {
	UserID       int64      `json:"user_id"`
	UserName     string     `json:"user_name"`
	ProfileImage string     `json:"profile_image,omitempty"`
	JoinedAt     time.Time  `json:"joined_at"`
	LastReadAt   *time.Time `json:"last_read_at,omitempty"`
}

// MessageInfo is the API view of a message with sender attribution and
// watermark-derived read state.
type MessageInfo struct {
	MessageID          int64              `json:"message_id"`
	RoomID             int64              `json:"room_id"`
	SenderID           int64              `json:"sender_id"`
	SenderName         string             `json:"sender_name"`
	SenderProfileImage string             `json:"sender_profile_image,omitempty"`
	Content            string             `json:"content"`
	Kind               models.MessageKind `json:"kind"`
	FileURL            string             `json:"file_url,omitempty"`
	IsDeleted          bool               `json:"is_deleted"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          *time.Time         `json:"updated_at,omitempty"`
	ReadCount          int64              `json:"read_count"`
	IsRead             bool               `json:"is_read"`
}

// RoomInfo is the API view of a room for a given viewer. Name is resolved
// per viewer for unnamed personal rooms and is never stored.
type RoomInfo struct {
	RoomID        int64           `json:"room_id"`
	Name          string          `json:"name"`
	Kind          models.RoomKind `json:"kind"`
	MemberCount   int64           `json:"member_count"`
	LastMessage   *MessageInfo    `json:"last_message,omitempty"`
	UnreadCount   int64           `json:"unread_count"`
	CreatedAt     time.Time       `json:"created_at"`
	Members       []MemberInfo    `json:"members"`
	CurrentUserID int64           `json:"current_user_id"`
}

// MessagePage is one page of messages in ascending order for display,
// with a flag for older history.
type MessagePage struct {
	Messages []MessageInfo `json:"messages"`
	HasMore  bool          `json:"has_more"`
}
