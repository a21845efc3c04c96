package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
)

var allowedExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
}

// ImageStore accepts image bytes and returns a serveable URL.
type ImageStore interface {
	Store(data []byte, originalName string) (string, error)
}

// DiskImageStore writes chat images under <dir>/chats with uuid names.
type DiskImageStore struct {
	dir     string
	maxSize int64
}

// NewDiskImageStore constructs a DiskImageStore.
func NewDiskImageStore(dir string, maxSize int64) *DiskImageStore {
	return &DiskImageStore{dir: dir, maxSize: maxSize}
}

// Store validates and persists the image, returning its public URL path.
// originalName only contributes the extension; files are renamed to a
// uuid so uploads never collide or leak client file names.
func (s *DiskImageStore) Store(data []byte, originalName string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if int64(len(data)) > s.maxSize {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if ext == "" {
		ext = "jpg"
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedType
	}

	chatDir := filepath.Join(s.dir, "chats")
	if err := os.MkdirAll(chatDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := fmt.Sprintf("%s.%s", uuid.NewString(), ext)
	if err := os.WriteFile(filepath.Join(chatDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return "/uploads/chats/" + name, nil
}
