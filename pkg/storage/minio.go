package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	minioMaxIdleConns    = 100
	minioIdleConnTimeout = 90 * time.Second
)

// MinIOConfig holds object storage connection settings.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

// MinIOStorage keeps exports in an S3-compatible bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIOStorage connects to the endpoint and creates the bucket when it is
// missing.
func NewMinIOStorage(ctx context.Context, cfg MinIOConfig) (*MinIOStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
		Transport: &http.Transport{
			MaxIdleConns:        minioMaxIdleConns,
			MaxIdleConnsPerHost: minioMaxIdleConns,
			IdleConnTimeout:     minioIdleConnTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check export bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create export bucket: %w", err)
		}
	}
	return &MinIOStorage{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Save uploads data under the configured prefix.
func (s *MinIOStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentTypeFor(name),
	})
	if err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}
	return name, nil
}

// Open streams a stored export.
func (s *MinIOStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	object := s.objectName(name)
	if _, err := s.client.StatObject(ctx, s.bucket, object, minio.StatObjectOptions{}); err != nil {
		return nil, fmt.Errorf("stat export: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download export: %w", err)
	}
	return obj, nil
}

// Delete removes a stored export. Missing objects are not an error.
func (s *MinIOStorage) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.objectName(name), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	return nil
}

// CleanupOlderThan removes objects under the prefix last modified before ttl.
func (s *MinIOStorage) CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	opts := minio.ListObjectsOptions{Recursive: true}
	if s.prefix != "" {
		opts.Prefix = s.prefix + "/"
	}
	deleted := make([]string, 0)
	for object := range s.client.ListObjects(ctx, s.bucket, opts) {
		if object.Err != nil {
			return deleted, fmt.Errorf("list exports: %w", object.Err)
		}
		if object.LastModified.After(cutoff) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return deleted, fmt.Errorf("delete export %s: %w", object.Key, err)
		}
		deleted = append(deleted, strings.TrimPrefix(object.Key, opts.Prefix))
	}
	return deleted, nil
}

func (s *MinIOStorage) objectName(name string) string {
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	if s.prefix == "" {
		return clean
	}
	return s.prefix + "/" + clean
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	case ".html":
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}
