package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// UploadBytes writes data to a GCS object, replacing any previous content.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("copy data to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}

// UploadToGCS writes data to the object named by a gs:// URI.
func UploadToGCS(ctx context.Context, gcsURI, contentType string, data []byte) error {
	bucketName, objectPath, err := SplitGCSURI(gcsURI)
	if err != nil {
		return err
	}
	if err := UploadBytes(ctx, bucketName, objectPath, contentType, data); err != nil {
		return fmt.Errorf("uploadToGCS %s: %w", gcsURI, err)
	}
	return nil
}
