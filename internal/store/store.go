// Package store exports packed archives to object storage.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetqr/internal/config"
	"github.com/JonMunkholm/sheetqr/internal/core"
)

// ErrUnknownBackend is returned for an ARCHIVE_STORE value other than s3 or gcs.
var ErrUnknownBackend = errors.New("unknown archive store backend")

// New builds the archive store selected by cfg. It returns nil when export
// is disabled.
func New(ctx context.Context, cfg config.StorageConfig) (core.ArchiveStore, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Backend {
	case "s3":
		return NewS3Store(S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			UseSSL:    cfg.S3UseSSL,
		})
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// objectKey joins prefix and key with a single slash.
func objectKey(prefix, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
