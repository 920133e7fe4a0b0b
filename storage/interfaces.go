package storage

import (
	"context"
	"strings"
)

// BlobStore reads and writes whole objects addressed by bucket and key.
// Implementations must be thread-safe and support concurrent access.
type BlobStore interface {
	// Get returns the object's bytes.
	// Returns ErrNotFound if the object does not exist.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put stores data under bucket/key, overwriting any existing object.
	Put(ctx context.Context, bucket, key string, data []byte) error
}

// CredentialProvider resolves named secrets.
type CredentialProvider interface {
	// GetSecret returns the secret's value.
	// Returns ErrSecretNotFound if the secret does not exist.
	GetSecret(ctx context.Context, name string) (string, error)
}

// RunRepository keeps a journal of pipeline runs.
type RunRepository interface {
	// SaveRun stores or replaces the run with the same RunID.
	SaveRun(ctx context.Context, run *RunRecord) error

	// ListRuns returns up to limit runs, most recent first.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
}

// ValidateLocation checks that bucket and key are usable object coordinates.
func ValidateLocation(bucket, key string) error {
	if strings.TrimSpace(bucket) == "" {
		return ErrInvalidLocation
	}
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidLocation
	}
	return nil
}
