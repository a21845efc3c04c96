package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"club-chat-service/internal/storage"
)

// UploadHandler accepts chat image uploads.
type UploadHandler struct {
	store   storage.ImageStore
	maxSize int64
}

// NewUploadHandler builds an UploadHandler.
func NewUploadHandler(store storage.ImageStore, maxSize int64) *UploadHandler {
	return &UploadHandler{store: store, maxSize: maxSize}
}

// UploadImage stores a multipart image and returns its URL.
func (h *UploadHandler) UploadImage(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
		return
	}
	if header.Size > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}

	url, err := h.store.Store(data, header.Filename)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// UploadImageBase64 stores a base64-encoded image and returns its URL.
// Accepts a raw payload or a data URI.
func (h *UploadHandler) UploadImageBase64(c *gin.Context) {
	var req struct {
		Image    string `json:"image" binding:"required"`
		FileName string `json:"file_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := req.Image
	if idx := strings.Index(payload, ";base64,"); idx >= 0 {
		payload = payload[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 payload"})
		return
	}

	name := req.FileName
	if name == "" {
		name = "image.jpg"
	}

	url, err := h.store.Store(data, name)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h *UploadHandler) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrEmptyFile), errors.Is(err, storage.ErrUnsupportedType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store image"})
	}
}
