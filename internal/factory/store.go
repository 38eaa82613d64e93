// Package factory builds configured backends from config.
package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/blob"
	"github.com/healthlab-css/glowup-mrt/internal/config"
)

// NewObjectStore returns the configured log store. The memory driver exists
// for tests and local development; production uses s3.
func NewObjectStore(cfg *config.Config, log zerolog.Logger) (blob.ObjectStore, error) {
	switch cfg.StorageDriver {
	case "memory":
		log.Warn().Msg("using in-memory object store, logs will not survive restarts")
		return blob.NewMemStore(), nil
	case "s3":
		store, err := blob.NewS3Store(blob.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		log.Debug().Str("bucket", cfg.S3Bucket).Msg("object store ready")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER: %s", cfg.StorageDriver)
	}
}
