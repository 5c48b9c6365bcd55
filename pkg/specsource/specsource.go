package specsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// StagingDirName is created inside the working directory to hold documents
// fetched from remote sources, so the generator container can see them.
const StagingDirName = ".openapi-regen"

var ErrUnsupportedScheme = errors.New("specsource: unsupported reference scheme")

type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Config struct {
	// WorkDir anchors relative references and holds the staging directory.
	WorkDir string

	S3Client   S3API
	S3Region   string
	S3Endpoint string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Resolver struct {
	workDir    string
	httpClient *http.Client
	logger     *slog.Logger

	s3Region   string
	s3Endpoint string
	s3Once     sync.Once
	s3Client   S3API
	s3Err      error
}

// Document is a specification available on the local filesystem.
type Document struct {
	Ref  string
	Path string

	stagingDir string
}

// Close removes the staged copy of a remote document. It is a no-op for local
// documents.
func (d *Document) Close() error {
	if d == nil || d.stagingDir == "" {
		return nil
	}
	return os.RemoveAll(d.stagingDir)
}

func (d *Document) Staged() bool {
	return d != nil && d.stagingDir != ""
}

func NewResolver(cfg Config) (*Resolver, error) {
	workDir := strings.TrimSpace(cfg.WorkDir)
	if workDir == "" {
		workDir = "."
	}
	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		workDir:    absWorkDir,
		httpClient: httpClient,
		logger:     logger,
		s3Region:   strings.TrimSpace(cfg.S3Region),
		s3Endpoint: strings.TrimSpace(cfg.S3Endpoint),
		s3Client:   cfg.S3Client,
	}, nil
}

func (r *Resolver) WorkDir() string {
	return r.workDir
}

// Resolve makes ref available as a local file. Supported references are
// filesystem paths, file:// URLs, s3://bucket/key and http(s):// URLs.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Document, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("specification reference is empty")
	}

	if localPath, ok := r.LocalPath(ref); ok {
		return r.resolveLocal(ref, localPath)
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse specification reference %q: %w", ref, err)
	}

	switch parsed.Scheme {
	case "s3":
		return r.resolveS3(ctx, ref, parsed)
	case "http", "https":
		return r.resolveHTTP(ctx, ref)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
}

// LocalPath returns the absolute filesystem path ref points at, without
// checking that it exists. ok is false for remote and malformed references.
func (r *Resolver) LocalPath(ref string) (string, bool) {
	localPath := strings.TrimSpace(ref)
	if localPath == "" {
		return "", false
	}
	if strings.Contains(localPath, "://") {
		parsed, err := url.Parse(localPath)
		if err != nil || parsed.Scheme != "file" {
			return "", false
		}
		localPath = parsed.Path
	}

	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(r.workDir, localPath)
	}
	return filepath.Clean(localPath), true
}

func (r *Resolver) resolveLocal(ref, localPath string) (*Document, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("specification %s: %w", localPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("specification %s is a directory", localPath)
	}

	return &Document{Ref: ref, Path: localPath}, nil
}

func (r *Resolver) resolveS3(ctx context.Context, ref string, parsed *url.URL) (*Document, error) {
	bucket := parsed.Host
	key := strings.TrimPrefix(parsed.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 reference must be s3://bucket/key, got %q", ref)
	}

	client, err := r.s3()
	if err != nil {
		return nil, err
	}

	output, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer output.Body.Close()

	return r.stage(ref, path.Base(key), output.Body)
}

func (r *Resolver) resolveHTTP(ctx context.Context, ref string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %s", ref, resp.Status)
	}

	return r.stage(ref, path.Base(req.URL.Path), resp.Body)
}

func (r *Resolver) stage(ref, name string, body io.Reader) (*Document, error) {
	if name == "" || name == "." || name == "/" {
		name = "openapi.yaml"
	}

	stagingDir := filepath.Join(r.workDir, StagingDirName, uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	doc := &Document{
		Ref:        ref,
		Path:       filepath.Join(stagingDir, name),
		stagingDir: stagingDir,
	}

	file, err := os.OpenFile(doc.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		_ = doc.Close()
		return nil, fmt.Errorf("create staged specification: %w", err)
	}

	written, err := io.Copy(file, body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = doc.Close()
		return nil, fmt.Errorf("write staged specification: %w", err)
	}

	r.logger.Debug("staged remote specification", "ref", ref, "path", doc.Path, "bytes", written)
	return doc, nil
}

func (r *Resolver) s3() (S3API, error) {
	r.s3Once.Do(func() {
		if r.s3Client != nil {
			return
		}
		r.s3Client, r.s3Err = NewS3Client(context.Background(), r.s3Region, r.s3Endpoint)
	})
	return r.s3Client, r.s3Err
}
