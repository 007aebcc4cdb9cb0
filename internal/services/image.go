package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/wanderlog/apiserver/internal/storage"
)

// ObjectStore is the subset of storage.Storage used for story images.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	KeyFromURL(raw string) (string, bool)
}

// ImageService stores story images in object storage.
type ImageService struct {
	store ObjectStore
}

func NewImageService(store ObjectStore) *ImageService {
	return &ImageService{store: store}
}

// Upload stores an image and returns the URL clients attach to stories.
// Only image/* content types are accepted.
func (s *ImageService) Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	contentType = strings.TrimSpace(contentType)
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return "", validationError("Only images are allowed")
	}

	key := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return s.store.PublicURL(key), nil
}

// Delete removes an uploaded image, reporting ErrImageNotFound when the
// URL does not point at an existing object.
func (s *ImageService) Delete(ctx context.Context, imageURL string) error {
	key, ok := s.store.KeyFromURL(imageURL)
	if !ok {
		return ErrImageNotFound
	}
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrImageNotFound
	}
	if err := s.store.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ErrImageNotFound
		}
		return err
	}
	return nil
}

// Release deletes the image behind imageURL if it lives in our bucket.
// Foreign URLs, such as the placeholder, and already missing objects are
// ignored.
func (s *ImageService) Release(ctx context.Context, imageURL string) error {
	key, ok := s.store.KeyFromURL(imageURL)
	if !ok {
		return nil
	}
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return err
	}
	return nil
}
