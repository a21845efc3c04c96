package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"club-chat-service/internal/chat"
	"club-chat-service/internal/middleware"
	"club-chat-service/internal/models"
	"club-chat-service/internal/telemetry"
)

// ChatHandler exposes the room and message endpoints.
type ChatHandler struct {
	service         *chat.Service
	audit           *telemetry.AuditEmitter
	defaultPageSize int
	maxPageSize     int
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(service *chat.Service, audit *telemetry.AuditEmitter, defaultPageSize, maxPageSize int) *ChatHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	if maxPageSize <= 0 {
		maxPageSize = 200
	}
	return &ChatHandler{
		service:         service,
		audit:           audit,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// CreateRoom creates a group room or creates-or-returns a personal room.
func (h *ChatHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Kind      string  `json:"kind" binding:"required"`
		Name      string  `json:"name"`
		MemberIDs []int64 `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64(middleware.UserIDKey)
	roomID, existing, err := h.service.CreateRoom(c.Request.Context(), userID, models.RoomKind(req.Kind), req.Name, req.MemberIDs)
	if err != nil {
		h.writeError(c, err, "could not create room")
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("room %d created", roomID), requestIDFromContext(c), &userID)

	status := http.StatusCreated
	if existing {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"room_id": roomID, "existing": existing})
}

// ListRooms returns the caller's rooms ordered by recent activity.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID := c.GetInt64(middleware.UserIDKey)

	rooms, err := h.service.ListRooms(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err, "failed to load rooms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoom returns the detail view of one room.
func (h *ChatHandler) GetRoom(c *gin.Context) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	userID := c.GetInt64(middleware.UserIDKey)

	room, err := h.service.RoomDetail(c.Request.Context(), roomID, userID)
	if err != nil {
		h.writeError(c, err, "failed to load room")
		return
	}
	c.JSON(http.StatusOK, room)
}

// GetMessages returns one page of a room's history. ?before=<message_id>
// pages backwards; ?size caps the page.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	userID := c.GetInt64(middleware.UserIDKey)

	var beforeID int64
	if raw := c.Query("before"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		beforeID = parsed
	}

	size := h.defaultPageSize
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page size"})
			return
		}
		size = parsed
	}
	if size > h.maxPageSize {
		size = h.maxPageSize
	}

	page, err := h.service.Messages(c.Request.Context(), roomID, userID, beforeID, size)
	if err != nil {
		h.writeError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, page)
}

// PostMessage appends a message to a room.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		RoomID  int64  `json:"room_id" binding:"required"`
		Content string `json:"content" binding:"required"`
		Kind    string `json:"kind"`
		FileURL string `json:"file_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64(middleware.UserIDKey)
	msg, err := h.service.Send(c.Request.Context(), req.RoomID, userID, req.Content, models.MessageKind(req.Kind), req.FileURL)
	if err != nil {
		h.writeError(c, err, "failed to store message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead advances the caller's read watermark for the room.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	userID := c.GetInt64(middleware.UserIDKey)

	if err := h.service.MarkRead(c.Request.Context(), roomID, userID); err != nil {
		h.writeError(c, err, "failed to mark read")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessage soft-deletes a message (sender only).
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}
	userID := c.GetInt64(middleware.UserIDKey)

	if err := h.service.DeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		h.writeError(c, err, "could not delete message")
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("message %d deleted", messageID), requestIDFromContext(c), &userID)
	c.Status(http.StatusNoContent)
}

// LeaveRoom removes the caller from the room.
func (h *ChatHandler) LeaveRoom(c *gin.Context) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	userID := c.GetInt64(middleware.UserIDKey)

	if err := h.service.LeaveRoom(c.Request.Context(), roomID, userID); err != nil {
		h.writeError(c, err, "could not leave room")
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("left room %d", roomID), requestIDFromContext(c), &userID)
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrNotAMember), errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, chat.ErrInvalidRoomKind), errors.Is(err, chat.ErrInvalidMembership):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
