package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/abduss/imagehost/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// NewAWSConfig loads the shared AWS configuration. Static credentials from the
// object store settings win over the default provider chain when both are set.
func NewAWSConfig(ctx context.Context, region string, store config.ObjectStoreConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if store.AccessKeyID != "" && store.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(store.AccessKeyID, store.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// NewS3Client builds an S3 client, pointing it at a custom endpoint when one is configured.
func NewS3Client(cfg aws.Config, store config.ObjectStoreConfig) *s3.Client {
	endpoint := s3Endpoint(store.Endpoint, store.UseSSL)
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = store.UsePathStyle
	})
}

// s3Endpoint returns endpoint as an absolute URL, or "" for the regional default.
func s3Endpoint(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// NewSQSClient builds the upload event queue client.
func NewSQSClient(cfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(cfg)
}

// NewSNSClient builds the notification topic client.
func NewSNSClient(cfg aws.Config) *sns.Client {
	return sns.NewFromConfig(cfg)
}

// IMDSRegion resolves the region of the host from the EC2 instance metadata service.
type IMDSRegion struct {
	client *imds.Client
}

// NewIMDSRegion builds a resolver using the shared AWS configuration.
func NewIMDSRegion(cfg aws.Config) *IMDSRegion {
	return &IMDSRegion{client: imds.NewFromConfig(cfg)}
}

// Region returns the region the instance runs in.
func (r *IMDSRegion) Region(ctx context.Context) (string, error) {
	out, err := r.client.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", fmt.Errorf("get instance region: %w", err)
	}
	return out.Region, nil
}
