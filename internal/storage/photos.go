package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxPhotoBytes caps a single intake photo upload.
const maxPhotoBytes = 15 << 20

var allowedPhotoExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true, "heic": true,
}

// PhotoStore holds the photos attached to a request at intake. The triage
// collaborator receives their URLs.
type PhotoStore interface {
	PresignPut(ctx context.Context, objectName, contentType string, expiresIn time.Duration) (string, error)
	URL(objectName string) string
	Put(ctx context.Context, objectName string, reader io.Reader) error
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
}

// LocalPhotoStore implements PhotoStore on the local filesystem.
type LocalPhotoStore struct {
	baseDir string
	baseURL string
}

func NewLocalPhotoStore(baseDir, baseURL string) (*LocalPhotoStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &LocalPhotoStore{baseDir: baseDir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *LocalPhotoStore) PresignPut(ctx context.Context, objectName, contentType string, expiresIn time.Duration) (string, error) {
	if err := ValidatePhoto(objectName, contentType, 0); err != nil {
		return "", err
	}
	return s.URL(objectName), nil
}

func (s *LocalPhotoStore) URL(objectName string) string {
	return fmt.Sprintf("%s/photos/%s", s.baseURL, objectName)
}

func (s *LocalPhotoStore) Put(ctx context.Context, objectName string, reader io.Reader) error {
	fullPath := filepath.Join(s.baseDir, filepath.Clean(objectName))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create photo file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, io.LimitReader(reader, maxPhotoBytes)); err != nil {
		return fmt.Errorf("failed to write photo: %w", err)
	}
	return nil
}

func (s *LocalPhotoStore) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.baseDir, filepath.Clean(objectName)))
	if err != nil {
		return nil, fmt.Errorf("failed to open photo: %w", err)
	}
	return file, nil
}

func (s *LocalPhotoStore) Delete(ctx context.Context, objectName string) error {
	if err := os.Remove(filepath.Join(s.baseDir, filepath.Clean(objectName))); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// ValidatePhoto checks that an upload looks like an image the triage
// collaborator can consume. A zero size means the size is not yet known.
func ValidatePhoto(objectName, contentType string, sizeBytes int64) error {
	if objectName == "" {
		return fmt.Errorf("photo name is required")
	}
	if sizeBytes > maxPhotoBytes {
		return fmt.Errorf("photo exceeds %d bytes", int64(maxPhotoBytes))
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("unsupported content type: %s", contentType)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(objectName), "."))
	if ext != "" && !allowedPhotoExtensions[ext] {
		return fmt.Errorf("unsupported photo extension: %s", ext)
	}
	return nil
}
