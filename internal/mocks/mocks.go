package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"club-chat-service/internal/models"
	"club-chat-service/internal/repositories"
)

type RoomRepositoryMock struct {
	mock.Mock
}

var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)

func (m *RoomRepositoryMock) CreatePersonal(ctx context.Context, creatorID, otherID int64) (models.Room, bool, error) {
	args := m.Called(ctx, creatorID, otherID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Bool(1), args.Error(2)
}

func (m *RoomRepositoryMock) CreateGroup(ctx context.Context, creatorID int64, name string, memberIDs []int64) (models.Room, error) {
	args := m.Called(ctx, creatorID, name, memberIDs)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) Get(ctx context.Context, roomID int64) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListForUser(ctx context.Context, userID int64) ([]models.Room, error) {
	args := m.Called(ctx, userID)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) ListMembers(ctx context.Context, roomID int64) ([]models.Member, error) {
	args := m.Called(ctx, roomID)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *RoomRepositoryMock) GetMembership(ctx context.Context, roomID, userID int64) (models.Member, error) {
	args := m.Called(ctx, roomID, userID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *RoomRepositoryMock) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) RemoveMembership(ctx context.Context, roomID, userID int64) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) MarkRead(ctx context.Context, roomID, userID int64, at time.Time) error {
	args := m.Called(ctx, roomID, userID, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)

func (m *MessageRepositoryMock) Append(ctx context.Context, roomID, senderID int64, content string, kind models.MessageKind, fileURL string) (models.Message, error) {
	args := m.Called(ctx, roomID, senderID, content, kind, fileURL)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Page(ctx context.Context, roomID, beforeID int64, limit int) ([]models.Message, bool, error) {
	args := m.Called(ctx, roomID, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Last(ctx context.Context, roomID int64) (models.Message, error) {
	args := m.Called(ctx, roomID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int64) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) CountUnread(ctx context.Context, roomID, userID int64) (int64, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) IsRead(ctx context.Context, messageID, userID int64) (bool, error) {
	args := m.Called(ctx, messageID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) ReadCount(ctx context.Context, messageID int64) (int64, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(int64), args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)

func (m *UserRepositoryMock) Get(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) Bulk(ctx context.Context, userIDs []int64) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Broadcast(roomID int64, event models.RoomEvent) {
	m.Called(roomID, event)
}
