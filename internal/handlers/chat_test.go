package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"club-chat-service/internal/chat"
	"club-chat-service/internal/middleware"
	"club-chat-service/internal/mocks"
	"club-chat-service/internal/models"
	"club-chat-service/internal/repositories"
)

type chatFixture struct {
	rooms      *mocks.RoomRepositoryMock
	messages   *mocks.MessageRepositoryMock
	users      *mocks.UserRepositoryMock
	dispatcher *mocks.BroadcasterMock
	router     *gin.Engine
}

func newChatFixture() *chatFixture {
	gin.SetMode(gin.TestMode)

	f := &chatFixture{
		rooms:      new(mocks.RoomRepositoryMock),
		messages:   new(mocks.MessageRepositoryMock),
		users:      new(mocks.UserRepositoryMock),
		dispatcher: new(mocks.BroadcasterMock),
	}
	service := chat.NewService(f.rooms, f.messages, f.users, f.dispatcher, zerolog.Nop())
	handler := NewChatHandler(service, nil, 50, 200)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, int64(1))
		c.Next()
	})
	r.POST("/api/chats/rooms", handler.CreateRoom)
	r.GET("/api/chats/rooms", handler.ListRooms)
	r.GET("/api/chats/rooms/:room_id", handler.GetRoom)
	r.GET("/api/chats/rooms/:room_id/messages", handler.GetMessages)
	r.POST("/api/chats/messages", handler.PostMessage)
	r.POST("/api/chats/rooms/:room_id/read", handler.MarkRead)
	r.DELETE("/api/chats/messages/:message_id", handler.DeleteMessage)
	r.POST("/api/chats/rooms/:room_id/leave", handler.LeaveRoom)
	f.router = r
	return f
}

func (f *chatFixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateRoomReturnsCreated(t *testing.T) {
	f := newChatFixture()
	f.rooms.On("CreateGroup", mock.Anything, int64(1), "book club", []int64{2, 3}).
		Return(models.Room{ID: 11, Kind: models.RoomGroup}, nil).Once()

	rec := f.do(http.MethodPost, "/api/chats/rooms", `{"kind":"group","name":"book club","member_ids":[2,3]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(11), resp["room_id"])
	assert.Equal(t, false, resp["existing"])
	f.rooms.AssertExpectations(t)
}

func TestCreateRoomExistingPersonalReturnsOK(t *testing.T) {
	f := newChatFixture()
	f.rooms.On("CreatePersonal", mock.Anything, int64(1), int64(2)).
		Return(models.Room{ID: 5, Kind: models.RoomPersonal}, true, nil).Once()

	rec := f.do(http.MethodPost, "/api/chats/rooms", `{"kind":"personal","member_ids":[2]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["existing"])
}

func TestCreateRoomBadKind(t *testing.T) {
	f := newChatFixture()

	rec := f.do(http.MethodPost, "/api/chats/rooms", `{"kind":"broadcast","member_ids":[2]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRoomNotFound(t *testing.T) {
	f := newChatFixture()
	f.rooms.On("Get", mock.Anything, int64(77)).Return(models.Room{}, repositories.ErrRoomNotFound).Once()

	rec := f.do(http.MethodGet, "/api/chats/rooms/77", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRoomForbiddenForNonMember(t *testing.T) {
	f := newChatFixture()
	f.rooms.On("Get", mock.Anything, int64(7)).Return(models.Room{ID: 7, Kind: models.RoomGroup}, nil).Once()
	f.rooms.On("IsMember", mock.Anything, int64(7), int64(1)).Return(false, nil).Once()

	rec := f.do(http.MethodGet, "/api/chats/rooms/7", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetMessagesInvalidCursor(t *testing.T) {
	f := newChatFixture()

	rec := f.do(http.MethodGet, "/api/chats/rooms/7/messages?before=abc", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesCapsPageSize(t *testing.T) {
	f := newChatFixture()
	f.rooms.On("IsMember", mock.Anything, int64(7), int64(1)).Return(true, nil).Once()
	f.messages.On("Page", mock.Anything, int64(7), int64(0), 200).Return([]models.Message{}, false, nil).Once()

	rec := f.do(http.MethodGet, "/api/chats/rooms/7/messages?size=9999", "")

	require.Equal(t, http.StatusOK, rec.Code)
	f.messages.AssertExpectations(t)
}

func TestPostMessageCreated(t *testing.T) {
	f := newChatFixture()
	stored := models.Message{ID: 42, RoomID: 7, SenderID: 1, Content: "hi", Kind: models.MessageText}

	f.rooms.On("Get", mock.Anything, int64(7)).Return(models.Room{ID: 7, Kind: models.RoomGroup}, nil).Once()
	f.rooms.On("IsMember", mock.Anything, int64(7), int64(1)).Return(true, nil).Once()
	f.messages.On("Append", mock.Anything, int64(7), int64(1), "hi", models.MessageText, "").Return(stored, nil).Once()
	f.users.On("Get", mock.Anything, int64(1)).Return(models.User{ID: 1, Name: "alice"}, nil).Once()
	f.dispatcher.On("Broadcast", int64(7), mock.Anything).Once()

	rec := f.do(http.MethodPost, "/api/chats/messages", `{"room_id":7,"content":"hi"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	f.dispatcher.AssertExpectations(t)
}

func TestPostMessageMissingContent(t *testing.T) {
	f := newChatFixture()

	rec := f.do(http.MethodPost, "/api/chats/messages", `{"room_id":7}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadNoContent(t *testing.T) {
	f := newChatFixture()
	f.rooms.On("MarkRead", mock.Anything, int64(7), int64(1), mock.AnythingOfType("time.Time")).Return(nil).Once()
	f.dispatcher.On("Broadcast", int64(7), mock.Anything).Once()

	rec := f.do(http.MethodPost, "/api/chats/rooms/7/read", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMarkReadForbidden(t *testing.T) {
	f := newChatFixture()
	f.rooms.On("MarkRead", mock.Anything, int64(7), int64(1), mock.AnythingOfType("time.Time")).
		Return(repositories.ErrMembershipNotFound).Once()

	rec := f.do(http.MethodPost, "/api/chats/rooms/7/read", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteMessageForbiddenForOtherSender(t *testing.T) {
	f := newChatFixture()
	f.messages.On("Get", mock.Anything, int64(8)).Return(models.Message{ID: 8, RoomID: 2, SenderID: 99}, nil).Once()

	rec := f.do(http.MethodDelete, "/api/chats/messages/8", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteMessageNoContent(t *testing.T) {
	f := newChatFixture()
	f.messages.On("Get", mock.Anything, int64(8)).Return(models.Message{ID: 8, RoomID: 2, SenderID: 1}, nil).Once()
	f.messages.On("SoftDelete", mock.Anything, int64(8)).Return(true, nil).Once()
	f.dispatcher.On("Broadcast", int64(2), mock.Anything).Once()

	rec := f.do(http.MethodDelete, "/api/chats/messages/8", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLeaveRoomNoContent(t *testing.T) {
	f := newChatFixture()
	f.rooms.On("RemoveMembership", mock.Anything, int64(7), int64(1)).Return(nil).Once()
	f.users.On("Get", mock.Anything, int64(1)).Return(models.User{ID: 1, Name: "alice"}, nil).Once()
	f.messages.On("Append", mock.Anything, int64(7), int64(1), "alice left the room.", models.MessageSystem, "").
		Return(models.Message{ID: 9, RoomID: 7, SenderID: 1, Kind: models.MessageSystem, Content: "alice left the room."}, nil).Once()
	f.dispatcher.On("Broadcast", int64(7), mock.Anything).Once()

	rec := f.do(http.MethodPost, "/api/chats/rooms/7/leave", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInvalidPathID(t *testing.T) {
	f := newChatFixture()

	rec := f.do(http.MethodGet, "/api/chats/rooms/abc", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
