package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"club-chat-service/internal/models"
	"club-chat-service/internal/repositories"
)

// Broadcaster pushes room events to connected subscribers. Dispatch is
// best-effort: it never blocks or fails the persisting operation.
type Broadcaster interface {
	Broadcast(roomID int64, event models.RoomEvent)
}

// Service composes the stores and the dispatcher into the user-facing
// chat operations. It is the sole membership-authorization boundary.
type Service struct {
	rooms      repositories.RoomRepository
	messages   repositories.MessageRepository
	users      repositories.UserRepository
	dispatcher Broadcaster
	log        zerolog.Logger
}

// NewService builds a Service.
func NewService(rooms repositories.RoomRepository, messages repositories.MessageRepository, users repositories.UserRepository, dispatcher Broadcaster, log zerolog.Logger) *Service {
	return &Service{
		rooms:      rooms,
		messages:   messages,
		users:      users,
		dispatcher: dispatcher,
		log:        log,
	}
}

// CreateRoom creates a room, or returns the existing personal room for
// the pair. The returned bool reports reuse.
func (s *Service) CreateRoom(ctx context.Context, creatorID int64, kind models.RoomKind, name string, memberIDs []int64) (int64, bool, error) {
	if !kind.Valid() {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidRoomKind, kind)
	}

	if kind == models.RoomPersonal {
		others := make([]int64, 0, 1)
		seen := map[int64]struct{}{}
		for _, id := range memberIDs {
			if id == creatorID {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			others = append(others, id)
		}
		if len(others) != 1 {
			return 0, false, fmt.Errorf("%w: personal room needs exactly one other member", ErrInvalidMembership)
		}

		room, existing, err := s.rooms.CreatePersonal(ctx, creatorID, others[0])
		if err != nil {
			return 0, false, fmt.Errorf("create personal room: %w", err)
		}
		if existing {
			s.log.Debug().Int64("room_id", room.ID).Msg("reusing personal room")
		}
		return room.ID, existing, nil
	}

	room, err := s.rooms.CreateGroup(ctx, creatorID, name, memberIDs)
	if err != nil {
		return 0, false, fmt.Errorf("create group room: %w", err)
	}
	return room.ID, false, nil
}

// ListRooms returns the viewer's rooms ordered by recent activity, each
// with member infos, last message, and unread count.
func (s *Service) ListRooms(ctx context.Context, userID int64) ([]RoomInfo, error) {
	rooms, err := s.rooms.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		info, err := s.buildRoomInfo(ctx, room, userID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// RoomDetail returns the full view of one room for a member.
func (s *Service) RoomDetail(ctx context.Context, roomID, userID int64) (RoomInfo, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return RoomInfo{}, ErrNotFound
		}
		return RoomInfo{}, fmt.Errorf("get room: %w", err)
	}

	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return RoomInfo{}, err
	}

	return s.buildRoomInfo(ctx, room, userID)
}

// Messages returns one page of the room's history for a member, oldest
// first within the page.
func (s *Service) Messages(ctx context.Context, roomID, userID, beforeID int64, pageSize int) (MessagePage, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return MessagePage{}, err
	}

	msgs, hasMore, err := s.messages.Page(ctx, roomID, beforeID, pageSize)
	if err != nil {
		return MessagePage{}, fmt.Errorf("page messages: %w", err)
	}

	infos := make([]MessageInfo, 0, len(msgs))
	// The store hands back newest-first; reverse for reading order.
	for i := len(msgs) - 1; i >= 0; i-- {
		info, err := s.buildMessageInfo(ctx, msgs[i], userID)
		if err != nil {
			return MessagePage{}, err
		}
		infos = append(infos, info)
	}
	return MessagePage{Messages: infos, HasMore: hasMore}, nil
}

// Send persists a message and fans it out. The append and the room's
// last-activity marker commit together; the broadcast happens after and
// can never fail the write.
func (s *Service) Send(ctx context.Context, roomID, senderID int64, content string, kind models.MessageKind, fileURL string) (models.Message, error) {
	if !kind.Valid() {
		kind = models.MessageText
	}

	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("get room: %w", err)
	}
	if err := s.requireMember(ctx, roomID, senderID); err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.Append(ctx, roomID, senderID, content, kind, fileURL)
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}

	s.dispatcher.Broadcast(roomID, models.RoomEvent{
		Type:       models.EventMessage,
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: s.userName(ctx, senderID),
		Content:    msg.Content,
		Kind:       msg.Kind,
		MessageID:  msg.ID,
	})

	s.log.Info().Int64("room_id", roomID).Int64("message_id", msg.ID).Msg("message sent")
	return msg, nil
}

// MarkRead advances the caller's watermark to now and announces it.
func (s *Service) MarkRead(ctx context.Context, roomID, userID int64) error {
	if err := s.rooms.MarkRead(ctx, roomID, userID, time.Now()); err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrNotAMember
		}
		return fmt.Errorf("mark read: %w", err)
	}

	s.dispatcher.Broadcast(roomID, models.RoomEvent{
		Type:     models.EventRead,
		RoomID:   roomID,
		SenderID: userID,
	})
	return nil
}

// DeleteMessage soft-deletes a message. Sender-only. A second call on an
// already-deleted message is a no-op success: the visible state is
// identical either way.
func (s *Service) DeleteMessage(ctx context.Context, messageID, requestorID int64) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get message: %w", err)
	}
	if msg.SenderID != requestorID {
		return ErrForbidden
	}
	if msg.IsDeleted {
		return nil
	}

	deleted, err := s.messages.SoftDelete(ctx, messageID)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	if !deleted {
		// Lost a race with another delete of the same message.
		return nil
	}

	s.dispatcher.Broadcast(msg.RoomID, models.RoomEvent{
		Type:      models.EventDelete,
		RoomID:    msg.RoomID,
		SenderID:  requestorID,
		MessageID: messageID,
	})

	s.log.Info().Int64("message_id", messageID).Msg("message deleted")
	return nil
}

// LeaveRoom removes the caller's membership, then records a system
// message announcing the departure. The membership goes first, so the
// leaver's own connections are no longer subscribed when the
// announcement fans out.
func (s *Service) LeaveRoom(ctx context.Context, roomID, userID int64) error {
	if err := s.rooms.RemoveMembership(ctx, roomID, userID); err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrNotAMember
		}
		return fmt.Errorf("remove membership: %w", err)
	}

	name := s.userName(ctx, userID)
	if name == "" {
		name = "A member"
	}
	msg, err := s.messages.Append(ctx, roomID, userID, fmt.Sprintf("%s left the room.", name), models.MessageSystem, "")
	if err != nil {
		// The leave itself succeeded; the announcement is best-effort.
		s.log.Error().Err(err).Int64("room_id", roomID).Msg("leave announcement failed")
		return nil
	}

	s.dispatcher.Broadcast(roomID, models.RoomEvent{
		Type:       models.EventMessage,
		RoomID:     roomID,
		SenderID:   userID,
		SenderName: name,
		Content:    msg.Content,
		Kind:       models.MessageSystem,
		MessageID:  msg.ID,
	})

	s.log.Info().Int64("room_id", roomID).Int64("user_id", userID).Msg("left room")
	return nil
}

func (s *Service) requireMember(ctx context.Context, roomID, userID int64) error {
	member, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return ErrNotAMember
	}
	return nil
}

func (s *Service) buildRoomInfo(ctx context.Context, room models.Room, viewerID int64) (RoomInfo, error) {
	members, err := s.rooms.ListMembers(ctx, room.ID)
	if err != nil {
		return RoomInfo{}, fmt.Errorf("list members: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.Bulk(ctx, ids)
	if err != nil {
		return RoomInfo{}, fmt.Errorf("load profiles: %w", err)
	}
	profiles := make(map[int64]models.User, len(users))
	for _, u := range users {
		profiles[u.ID] = u
	}

	memberInfos := make([]MemberInfo, 0, len(members))
	var otherName string
	for _, m := range members {
		u := profiles[m.UserID]
		info := MemberInfo{
			UserID:   m.UserID,
			UserName: u.Name,
			JoinedAt: m.JoinedAt,
		}
		if u.ProfileImage.Valid {
			info.ProfileImage = u.ProfileImage.String
		}
		if m.LastReadAt.Valid {
			t := m.LastReadAt.Time
			info.LastReadAt = &t
		}
		if m.UserID != viewerID && otherName == "" {
			otherName = u.Name
		}
		memberInfos = append(memberInfos, info)
	}

	// Unnamed personal rooms take the other member's name, per viewer.
	displayName := room.Name.String
	if room.Kind == models.RoomPersonal && !room.Name.Valid {
		displayName = otherName
		if displayName == "" {
			displayName = "Unknown"
		}
	}

	info := RoomInfo{
		RoomID:        room.ID,
		Name:          displayName,
		Kind:          room.Kind,
		MemberCount:   int64(len(members)),
		CreatedAt:     room.CreatedAt,
		Members:       memberInfos,
		CurrentUserID: viewerID,
	}

	last, err := s.messages.Last(ctx, room.ID)
	switch {
	case err == nil:
		lastInfo, err := s.buildMessageInfo(ctx, last, viewerID)
		if err != nil {
			return RoomInfo{}, err
		}
		info.LastMessage = &lastInfo
	case errors.Is(err, repositories.ErrMessageNotFound):
		// Room has no messages yet.
	default:
		return RoomInfo{}, fmt.Errorf("last message: %w", err)
	}

	unread, err := s.messages.CountUnread(ctx, room.ID, viewerID)
	if err != nil {
		return RoomInfo{}, fmt.Errorf("unread count: %w", err)
	}
	info.UnreadCount = unread

	return info, nil
}

func (s *Service) buildMessageInfo(ctx context.Context, msg models.Message, viewerID int64) (MessageInfo, error) {
	info := MessageInfo{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Kind:      msg.Kind,
		IsDeleted: msg.IsDeleted,
		CreatedAt: msg.CreatedAt,
	}
	if msg.FileURL.Valid {
		info.FileURL = msg.FileURL.String
	}
	if msg.UpdatedAt.Valid {
		t := msg.UpdatedAt.Time
		info.UpdatedAt = &t
	}

	if sender, err := s.users.Get(ctx, msg.SenderID); err == nil {
		info.SenderName = sender.Name
		if sender.ProfileImage.Valid {
			info.SenderProfileImage = sender.ProfileImage.String
		}
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return MessageInfo{}, fmt.Errorf("load sender: %w", err)
	} else {
		info.SenderName = "Unknown"
	}

	read, err := s.messages.IsRead(ctx, msg.ID, viewerID)
	if err != nil {
		return MessageInfo{}, fmt.Errorf("read state: %w", err)
	}
	info.IsRead = read

	count, err := s.messages.ReadCount(ctx, msg.ID)
	if err != nil {
		return MessageInfo{}, fmt.Errorf("read count: %w", err)
	}
	info.ReadCount = count

	return info, nil
}

func (s *Service) userName(ctx context.Context, userID int64) string {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Name
}
