package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dukerupert/academy/internal/config"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores uploads in an S3-compatible bucket (R2, MinIO, AWS) and serves
// them from a public base URL.
type S3 struct {
	client    s3Client
	bucket    string
	publicURL string
}

func NewS3(cfg config.ImageConfig) *S3 {
	return &S3{
		client:    newS3Client(cfg),
		bucket:    cfg.S3Bucket,
		publicURL: strings.TrimRight(cfg.S3PublicURL, "/"),
	}
}

func newS3Client(cfg config.ImageConfig) *s3.Client {
	opts := s3.Options{
		Region:       cfg.S3Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
	}
	return s3.New(opts)
}

func (s *S3) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	ct, err := ContentType(filename)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxSize {
		return "", fmt.Errorf("upload exceeds %d bytes", MaxSize)
	}

	key := "uploads/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ct),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return s.publicURL + "/" + key, nil
}
