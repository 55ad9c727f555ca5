package image

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinIOStore adapts minio.Client to the ObjectStore interface for one bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore constructs an adapter.
func NewMinIOStore(client *minio.Client, bucket string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket}
}

func (s *MinIOStore) Head(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, classifyMinIO(err)
	}
	return objectInfoFromMinIO(key, info), nil
}

func (s *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, classifyMinIO(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before any bytes are streamed.
	info, err := object.Stat()
	if err != nil {
		_ = object.Close()
		return nil, ObjectInfo{}, classifyMinIO(err)
	}
	return object, objectInfoFromMinIO(key, info), nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	return classifyMinIO(err)
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	return classifyMinIO(s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}))
}

func (s *MinIOStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, make(url.Values))
	if err != nil {
		return "", classifyMinIO(err)
	}
	return u.String(), nil
}

// Ping checks that the bucket is reachable.
func (s *MinIOStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classifyMinIO(err)
	}
	if !exists {
		return ErrNotFound.New("bucket %q", s.bucket)
	}
	return nil
}

func objectInfoFromMinIO(key string, info minio.ObjectInfo) ObjectInfo {
	if info.Key != "" {
		key = info.Key
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
	}
}

func classifyMinIO(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return ErrNotFound.Wrap(err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
		return ErrAuth.Wrap(err)
	default:
		return ErrInfrastructure.Wrap(err)
	}
}
