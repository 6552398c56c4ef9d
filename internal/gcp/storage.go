package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GCSStore reads and writes pipeline objects in Cloud Storage.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore wraps an existing storage client.
func NewGCSStore(client *storage.Client) *GCSStore {
	return &GCSStore{client: client}
}

// NewStorageClient creates a storage client and wraps it in a GCSStore.
func NewStorageClient(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return NewGCSStore(client), nil
}

// Bucket returns the handle for a bucket.
func (s *GCSStore) Bucket(name string) *storage.BucketHandle {
	return s.client.Bucket(name)
}

// Download streams gs://bucket/object into w.
func (s *GCSStore) Download(ctx context.Context, bucket, object string, w io.Writer) (int64, error) {
	reader, err := s.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, classify(err))
	}
	defer reader.Close()

	n, err := io.Copy(w, reader)
	if err != nil {
		return n, fmt.Errorf("failed to copy GCS object gs://%s/%s: %w", bucket, object, err)
	}
	return n, nil
}

// Upload writes data to gs://bucket/object, replacing any existing object.
func (s *GCSStore) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	writer := s.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		slog.Error("Failed to copy content to GCS object", "gcsBucket", bucket, "gcsObject", object, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		slog.Error("Failed to close GCS writer", "gcsBucket", bucket, "gcsObject", object, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", classify(err))
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func classify(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
