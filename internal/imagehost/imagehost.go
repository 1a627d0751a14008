// Package imagehost uploads branding images and returns their public URL.
package imagehost

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/dukerupert/academy/internal/config"
)

// MaxSize is the largest accepted upload.
const MaxSize = 5 << 20

var (
	ErrNotConfigured = errors.New("image host not configured")
	ErrUnsupported   = errors.New("unsupported image type")
)

type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// New returns ImgBB when an API key is set, S3 when a bucket and
// credentials are set, and otherwise an uploader that always fails with
// ErrNotConfigured.
func New(cfg config.ImageConfig) Uploader {
	switch {
	case cfg.ImgBBAPIKey != "":
		return NewImgBB(cfg.ImgBBAPIKey)
	case cfg.S3Bucket != "" && cfg.S3AccessKey != "" && cfg.S3SecretKey != "":
		return NewS3(cfg)
	default:
		return disabled{}
	}
}

type disabled struct{}

func (disabled) Upload(context.Context, string, io.Reader) (string, error) {
	return "", ErrNotConfigured
}

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// ContentType returns the MIME type for an image filename, or
// ErrUnsupported for anything that is not a known image extension.
func ContentType(filename string) (string, error) {
	ct, ok := imageTypes[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", ErrUnsupported
	}
	return ct, nil
}
