package media

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrStoreDisabled indicates that previews are not stored anywhere.
	ErrStoreDisabled = errors.New("preview store disabled")
	// ErrNotFound indicates that a preview key is unknown or already released.
	ErrNotFound = errors.New("preview not found")
)

// UploadInput wraps the payload required for storing a preview.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Preview references a stored preview image. Whoever holds it must release it.
type Preview struct {
	Key string `json:"key,omitempty"`
	URL string `json:"url"`
}

// Store hides the backing implementation for preview blobs.
type Store interface {
	Put(ctx context.Context, input UploadInput) (Preview, error)
	Release(ctx context.Context, key string) error
}

type disabledStore struct{}

func (disabledStore) Put(_ context.Context, _ UploadInput) (Preview, error) {
	return Preview{}, ErrStoreDisabled
}

func (disabledStore) Release(_ context.Context, _ string) error {
	return nil
}

// Disabled returns a store that keeps nothing.
func Disabled() Store {
	return disabledStore{}
}
