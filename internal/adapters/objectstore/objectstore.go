// Package objectstore writes export artifacts to a local path or an
// S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jasonherngwang/peoples-court/pkg/errs"
)

// ErrNotS3 is returned by ParseS3 for destinations without the s3:// scheme.
var ErrNotS3 = errors.New("objectstore: not an s3:// destination")

// Writer stores a blob under a destination.
type Writer interface {
	Put(ctx context.Context, dest string, content []byte, contentType string) error
}

// Location is a parsed s3:// destination.
type Location struct {
	Bucket string
	Key    string
}

// IsS3 reports whether dest names an object in a bucket.
func IsS3(dest string) bool { return strings.HasPrefix(dest, "s3://") }

// ParseS3 splits "s3://bucket/key/with/slashes".
func ParseS3(dest string) (Location, error) {
	if !IsS3(dest) {
		return Location{}, ErrNotS3
	}
	bucket, key, _ := strings.Cut(strings.TrimPrefix(dest, "s3://"), "/")
	key = strings.TrimLeft(key, "/")
	if bucket == "" || key == "" {
		return Location{}, errs.WrapKind("objectstore.parse", errs.ErrValidation,
			fmt.Errorf("destination %q needs a bucket and a key", dest))
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// S3Config configures an S3 client.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3 writes objects through minio-go. Buckets are created on first use.
type S3 struct {
	client *minio.Client
	region string

	mu      sync.Mutex
	buckets map[string]struct{}
}

// NewS3 creates an S3 writer.
func NewS3(cfg S3Config) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errs.WrapKind("objectstore.s3", errs.ErrValidation, errors.New("s3 endpoint is required"))
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errs.WrapKind("objectstore.s3", errs.ErrValidation, errors.New("s3 access key and secret key are required"))
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: init s3 client: %w", err)
	}
	return &S3{client: client, region: region, buckets: make(map[string]struct{})}, nil
}

func (s *S3) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; ok {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.buckets[bucket] = struct{}{}
	return nil
}

// Put implements Writer for s3:// destinations.
func (s *S3) Put(ctx context.Context, dest string, content []byte, contentType string) error {
	loc, err := ParseS3(dest)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx, loc.Bucket); err != nil {
		return errs.WrapKind("objectstore.put", errs.ErrUpstream, fmt.Errorf("ensure bucket %s: %w", loc.Bucket, err))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, loc.Bucket, loc.Key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errs.WrapKind("objectstore.put", errs.ErrUpstream, err)
	}
	return nil
}

// Local writes files, creating parent directories.
type Local struct{}

// Put implements Writer for filesystem paths.
func (Local) Put(_ context.Context, dest string, content []byte, _ string) error {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("objectstore: %w", err)
		}
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("objectstore: %w", err)
	}
	return os.Rename(tmp, dest)
}

// Router sends s3:// destinations to S3 and everything else to Local. S3 is
// built lazily so local exports need no credentials.
type Router struct {
	cfg S3Config

	once sync.Once
	s3   *S3
	err  error
}

var _ Writer = (*Router)(nil)

// NewRouter creates a Router.
func NewRouter(cfg S3Config) *Router { return &Router{cfg: cfg} }

// Put implements Writer.
func (r *Router) Put(ctx context.Context, dest string, content []byte, contentType string) error {
	if !IsS3(dest) {
		return Local{}.Put(ctx, dest, content, contentType)
	}
	r.once.Do(func() { r.s3, r.err = NewS3(r.cfg) })
	if r.err != nil {
		return r.err
	}
	return r.s3.Put(ctx, dest, content, contentType)
}
