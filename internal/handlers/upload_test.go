package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"club-chat-service/internal/mocks"
	"club-chat-service/internal/storage"
)

func setupUploadRouter(store *mocks.ImageStoreMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewUploadHandler(store, 1024)
	r := gin.New()
	r.POST("/api/chats/upload/image", handler.UploadImage)
	r.POST("/api/chats/upload/image-base64", handler.UploadImageBase64)
	return r
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadImageSuccess(t *testing.T) {
	store := new(mocks.ImageStoreMock)
	router := setupUploadRouter(store)

	store.On("Store", []byte("img"), "photo.jpg").Return("/uploads/chats/x.jpg", nil).Once()

	body, contentType := multipartBody(t, "image", "photo.jpg", []byte("img"))
	req := httptest.NewRequest(http.MethodPost, "/api/chats/upload/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "/uploads/chats/x.jpg", resp["url"])
	store.AssertExpectations(t)
}

func TestUploadImageMissingFile(t *testing.T) {
	router := setupUploadRouter(new(mocks.ImageStoreMock))

	req := httptest.NewRequest(http.MethodPost, "/api/chats/upload/image", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadImageUnsupportedType(t *testing.T) {
	store := new(mocks.ImageStoreMock)
	router := setupUploadRouter(store)

	store.On("Store", mock.Anything, "bad.exe").Return("", storage.ErrUnsupportedType).Once()

	body, contentType := multipartBody(t, "image", "bad.exe", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/chats/upload/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadImageBase64DataURI(t *testing.T) {
	store := new(mocks.ImageStoreMock)
	router := setupUploadRouter(store)

	payload := base64.StdEncoding.EncodeToString([]byte("img"))
	store.On("Store", []byte("img"), "pic.png").Return("/uploads/chats/y.png", nil).Once()

	body := `{"image":"data:image/png;base64,` + payload + `","file_name":"pic.png"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chats/upload/image-base64", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	store.AssertExpectations(t)
}

func TestUploadImageBase64InvalidPayload(t *testing.T) {
	router := setupUploadRouter(new(mocks.ImageStoreMock))

	req := httptest.NewRequest(http.MethodPost, "/api/chats/upload/image-base64", bytes.NewBufferString(`{"image":"!!!"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
