package repository

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	appConfig "github.com/phbiling/isp-billing/internal/config"
)

// S3FileRepository implements domain.FileRepository on an S3-compatible store
// (SeaweedFS, MinIO). Objects are addressed path-style: {endpoint}/{bucket}/{key}.
type S3FileRepository struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3FileRepository creates the client and makes sure the bucket exists
func NewS3FileRepository(ctx context.Context, cfg appConfig.S3Config) (*S3FileRepository, error) {
	// S3-compatible stores still want signed requests, any static pair will do
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("any", "any", "")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	repo := &S3FileRepository{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.Endpoint, "/"),
	}

	if err := repo.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Upload stores the object under filename and returns its public URL
func (r *S3FileRepository) Upload(ctx context.Context, file []byte, filename string, contentType string) (string, error) {
	key := path.Clean(strings.TrimLeft(filename, "/"))

	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "upload %s", key)
	}

	return fmt.Sprintf("%s/%s/%s", r.publicURL, r.bucket, key), nil
}

func (r *S3FileRepository) ensureBucket(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(r.bucket),
	})
	if err == nil {
		return nil
	}

	if _, err := r.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(r.bucket)}); err != nil {
		return errors.Wrapf(err, "create bucket %s", r.bucket)
	}
	return nil
}

// MemoryFileRepository keeps uploads in process. Used when S3_ENDPOINT is unset.
type MemoryFileRepository struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryFileRepository() *MemoryFileRepository {
	return &MemoryFileRepository{objects: make(map[string][]byte)}
}

func (r *MemoryFileRepository) Upload(ctx context.Context, file []byte, filename string, contentType string) (string, error) {
	key := path.Clean(strings.TrimLeft(filename, "/"))

	r.mu.Lock()
	r.objects[key] = append([]byte(nil), file...)
	r.mu.Unlock()

	return "memory://" + key, nil
}

// Object returns a stored upload, mainly for tests
func (r *MemoryFileRepository) Object(key string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.objects[key]
	return b, ok
}
