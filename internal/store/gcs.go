package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStore writes archives to a Google Cloud Storage bucket. Credentials come
// from the environment (Application Default Credentials, or
// STORAGE_EMULATOR_HOST for a local emulator).
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCSStore creates a client for bucket.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: prefix,
	}, nil
}

// Put uploads data and returns a gs:// location.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("object key is required")
	}
	name := objectKey(s.prefix, key)

	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", name, describeGCSError(err))
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, describeGCSError(err))
	}
	return "gs://" + s.name + "/" + name, nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// describeGCSError adds a hint for the API errors an operator can fix.
func describeGCSError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch gerr.Code {
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("permission denied, check the service account's bucket access: %w", err)
	case http.StatusNotFound:
		return fmt.Errorf("bucket does not exist: %w", err)
	}
	return err
}
