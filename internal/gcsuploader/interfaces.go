package gcsuploader

import (
	"context"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// Fetch reads a gs:// URI or a local file path.
	Fetch(ctx context.Context, location string) ([]byte, error)

	// UploadToGCS writes data to the object named by a gs:// URI.
	UploadToGCS(ctx context.Context, gcsURI, contentType string, data []byte) error
}

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// Fetch delegates to the package-level Fetch function.
func (s *GCSStorageService) Fetch(ctx context.Context, location string) ([]byte, error) {
	return Fetch(ctx, location)
}

// UploadToGCS delegates to the package-level UploadToGCS function.
func (s *GCSStorageService) UploadToGCS(ctx context.Context, gcsURI, contentType string, data []byte) error {
	return UploadToGCS(ctx, gcsURI, contentType, data)
}
