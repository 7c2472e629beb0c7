// Package media stores evidence photos and videos in S3-compatible object
// storage and resolves stored keys to retrievable URLs.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds S3-compatible storage configuration. PublicBaseURL is the
// prefix clients fetch objects from (a CDN or the path-style endpoint).
type Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// Store uploads and deletes evidence blobs and builds their URLs.
type Store struct {
	client  s3Client
	bucket  string
	baseURL string
}

// New returns a media store, or a disabled one (nil client) when the
// configuration is incomplete. Uploads against a disabled store fail;
// URL resolution returns empty strings.
func New(cfg Config) *Store {
	s := &Store{
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" {
		s.client = newS3Client(cfg)
		if s.baseURL == "" && cfg.Endpoint != "" {
			s.baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		}
	}
	return s
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// NewWithClient wires a custom client, used by tests.
func NewWithClient(client s3Client, bucket, baseURL string) *Store {
	return &Store{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// Enabled reports whether uploads are configured.
func (s *Store) Enabled() bool {
	return s.client != nil
}

// Upload stores the blob under a fresh key scoped to the assignment and
// returns the key. The original filename only contributes its extension.
func (s *Store) Upload(ctx context.Context, assignmentID int64, filename, contentType string, body io.Reader, size int64) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("media storage not configured")
	}

	key := fmt.Sprintf("evidence/%d/%s%s", assignmentID, uuid.NewString(), path.Ext(filename))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// Delete removes a stored blob. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.client == nil || key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// URL returns the absolute URL for a stored key, or "" when the key is
// empty or no base URL is configured.
func (s *Store) URL(key string) string {
	if key == "" || s.baseURL == "" {
		return ""
	}
	return s.baseURL + "/" + key
}
