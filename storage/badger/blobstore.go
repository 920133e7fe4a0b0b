package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/reviewpipe/storage"
)

// BlobStore implements storage.BlobStore for BadgerDB.
// Every object is stored inside a digest-checked envelope.
type BlobStore struct {
	backend     *Backend
	contentType string
	logger      *slog.Logger
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a BlobStore on an open backend.
func NewBlobStore(backend *Backend) storage.BlobStore {
	return newBlobStore(backend)
}

func newBlobStore(backend *Backend) *BlobStore {
	return &BlobStore{
		backend:     backend,
		contentType: "application/json",
		logger:      slog.Default().With("component", "badger-blobstore"),
	}
}

func validateBucket(bucket string) error {
	if strings.Contains(bucket, ":") {
		return fmt.Errorf("%w: bucket %q contains ':'", storage.ErrInvalidLocation, bucket)
	}
	return nil
}

// Get returns the object stored at bucket/key.
func (s *BlobStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := storage.ValidateLocation(bucket, key); err != nil {
		return nil, err
	}
	if err := validateBucket(bucket); err != nil {
		return nil, err
	}

	var obj *storage.Object
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get(makeBlobKey(bucket, key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, bucket, key)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			obj, unmarshalErr = storage.UnmarshalObject(val)
			return unmarshalErr
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("read object", "bucket", bucket, "key", key, "bytes", len(obj.Data))
	return obj.Data, nil
}

// Put stores data at bucket/key, replacing any previous object.
func (s *BlobStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	if err := storage.ValidateLocation(bucket, key); err != nil {
		return err
	}
	if err := validateBucket(bucket); err != nil {
		return err
	}

	value := storage.MarshalObject(storage.NewObject(data, s.contentType))
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeBlobKey(bucket, key), value)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("wrote object", "bucket", bucket, "key", key, "bytes", len(data))
	return nil
}
