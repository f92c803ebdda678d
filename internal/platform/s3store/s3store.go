// Package s3store implements store.ObjectStore on Amazon S3 or any
// S3-compatible endpoint.
package s3store

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

	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/store"
)

// Client is the subset of *s3.Client used by Store.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store implements store.ObjectStore for a single bucket.
type Store struct {
	client Client
	bucket string
	logger *slog.Logger
}

// New creates a Store for bucket.
func New(client Client, bucket string, logger *slog.Logger) *Store {
	if client == nil {
		panic("client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		bucket: bucket,
		logger: logger.With(slog.String("component", "s3_store"), slog.String("bucket", bucket)),
	}
}

var _ store.ObjectStore = (*Store)(nil)

// Bucket implements store.ObjectStore.
func (s *Store) Bucket() string { return s.bucket }

// Put implements store.ObjectStore.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to put object",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return store.NewStoreError("object", "put", key, mapError(err))
	}
	return nil
}

// Get implements store.ObjectStore.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, store.NewStoreError("object", "get", key, mapError(err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, store.NewStoreError("object", "get", key,
			fmt.Errorf("%w: reading body: %v", store.ErrUnavailable, err))
	}
	return data, nil
}

// mapError sorts S3 failures into permanent not-found and retryable errors.
func mapError(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var badState *types.InvalidObjectState
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) || errors.As(err, &badState) {
		return fmt.Errorf("%w: %v", store.ErrObjectNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket", "InvalidObjectState":
			return fmt.Errorf("%w: %v", store.ErrObjectNotFound, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
