package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abduss/imagehost/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultObjectStoreTimeout = 5 * time.Second

// NewMinIOClient establishes a MinIO client for the configured endpoint.
func NewMinIOClient(cfg config.ObjectStoreConfig, region string) (*minio.Client, error) {
	endpoint, secure := minioEndpoint(cfg.Endpoint, cfg.UseSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

// minioEndpoint strips an optional scheme and defaults the port to the MinIO API port.
func minioEndpoint(raw string, useSSL bool) (string, bool) {
	endpoint := strings.TrimSpace(raw)
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		useSSL = useSSL || u.Scheme == "https"
		endpoint = u.Host
	}
	if !strings.Contains(endpoint, ":") {
		endpoint = fmt.Sprintf("%s:9000", endpoint)
	}
	return endpoint, useSSL
}

// EnsureBucket ensures the target bucket exists, creating it if necessary.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}

	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}

	return nil
}
