package testutil

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cirruslabs/openapi-regen/pkg/specsource"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// S3Client starts LocalStack and returns a client pointed at it.
func S3Client(t *testing.T) *s3.Client {
	t.Helper()

	RequireDocker(t)

	ctx := context.Background()

	localstackContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "localstack/localstack",
			Env:          map[string]string{"SERVICES": "s3"},
			WaitingFor:   wait.ForHTTP("/_localstack/health").WithPort("4566/tcp"),
			ExposedPorts: []string{"4566/tcp"},
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = localstackContainer.Terminate(context.Background())
	})

	exposedPort, err := nat.NewPort("tcp", "4566")
	require.NoError(t, err)

	host, err := localstackContainer.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := localstackContainer.MappedPort(ctx, exposedPort)
	require.NoError(t, err)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("id", "secret", "")),
	)
	require.NoError(t, err)

	client, err := specsource.NewS3ClientFromConfig(cfg, fmt.Sprintf("http://%s:%d", host, mappedPort.Int()))
	require.NoError(t, err)

	return client
}

// PutObject creates a fresh bucket and uploads body under key, returning the
// bucket name.
func PutObject(t *testing.T, client *s3.Client, key string, body []byte) string {
	t.Helper()

	ctx := t.Context()
	bucketName := fmt.Sprintf("openapi-regen-test-%s", strings.ReplaceAll(uuid.NewString(), "-", ""))

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)})
	require.NoError(t, err)

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	require.NoError(t, err)

	return bucketName
}
