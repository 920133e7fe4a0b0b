// Package s3 implements storage.BlobStore on Amazon S3.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/poiesic/reviewpipe/storage"
)

// API is the subset of the S3 client used by BlobStore.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// BlobStore implements storage.BlobStore with S3 buckets and object keys.
type BlobStore struct {
	client      API
	contentType string
	logger      *slog.Logger
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore wraps an S3 client.
func NewBlobStore(client API) storage.BlobStore {
	return newBlobStore(client)
}

func newBlobStore(client API) *BlobStore {
	return &BlobStore{
		client:      client,
		contentType: "application/json; charset=utf-8",
		logger:      slog.Default().With("component", "s3-blobstore"),
	}
}

// NewFromConfig builds a BlobStore from an AWS configuration.
func NewFromConfig(cfg aws.Config) storage.BlobStore {
	return newBlobStore(s3.NewFromConfig(cfg))
}

// Get downloads s3://bucket/key.
func (s *BlobStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := storage.ValidateLocation(bucket, key); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", storage.ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}

	s.logger.Debug("downloaded object", "bucket", bucket, "key", key, "bytes", len(data))
	return data, nil
}

// Put uploads data to s3://bucket/key.
func (s *BlobStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	if err := storage.ValidateLocation(bucket, key); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(s.contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}

	s.logger.Debug("uploaded object", "bucket", bucket, "key", key, "bytes", len(data))
	return nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
