package specsource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultAWSRegion = "us-east-1"

// NewS3Client builds a client from the default AWS credential chain. A
// non-empty endpoint switches to path-style addressing for S3-compatible
// stores.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = defaultAWSRegion
	}

	return NewS3ClientFromConfig(cfg, endpoint)
}

func NewS3ClientFromConfig(cfg aws.Config, endpoint string) (*s3.Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return s3.NewFromConfig(cfg), nil
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("s3 endpoint must be a full URL, got %q", endpoint)
	}

	return s3.NewFromConfig(cfg, func(options *s3.Options) {
		options.BaseEndpoint = aws.String(endpoint)
		options.UsePathStyle = true
	}), nil
}
