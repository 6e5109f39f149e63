package repository

import (
	"context"
	"image"

	"go-scan-capture/internal/capture"
)

// ImageRepository defines the interface for image data access operations
type ImageRepository interface {
	// FetchImage retrieves an image from a URL
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// SessionRepository stores live capture sessions by id.
type SessionRepository interface {
	Save(session *capture.Session) error
	Get(id string) (*capture.Session, error)
	Delete(id string) error
	Count() int
}
