package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/xid"
)

// Config holds the connection settings for the object store.
type Config struct {
	Endpoint  string // host[:port], no scheme
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore implements Uploader on any S3-compatible store.
type MinioStore struct {
	client *minio.Client
	config Config
	logger *slog.Logger
}

var _ Uploader = (*MinioStore)(nil)

// NewMinioStore connects to the store. The bucket must already exist; its
// lifecycle belongs to the deployment, not this service.
func NewMinioStore(cfg Config, logger *slog.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: creating client: %w", err)
	}
	return &MinioStore{client: client, config: cfg, logger: logger}, nil
}

// Upload stores the image under a fresh collision-resistant key and returns
// its public URL, or "" on any failure. Failures are classified in the log
// so the common misconfigurations are recognizable at a glance.
func (s *MinioStore) Upload(ctx context.Context, r io.Reader, size int64, contentType string) string {
	ext, ok := extensions[contentType]
	if !ok {
		s.logger.Warn("upload rejected: unsupported content type",
			slog.String("contentType", contentType),
		)
		return ""
	}
	if size <= 0 || size > MaxImageSize {
		s.logger.Warn("upload rejected: bad size",
			slog.Int64("size", size),
			slog.Int64("max", MaxImageSize),
		)
		return ""
	}

	// xid keys are URL-safe and sortable by creation time, which keeps
	// bucket listings chronological.
	key := xid.New().String() + ext

	_, err := s.client.PutObject(ctx, s.config.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "max-age=3600",
	})
	if err != nil {
		s.logger.Error("image upload failed",
			slog.String("key", key),
			slog.String("cause", classifyError(err)),
			slog.String("error", err.Error()),
		)
		return ""
	}

	publicURL := s.objectURL(key)
	s.logger.Info("image uploaded",
		slog.String("key", key),
		slog.String("url", publicURL),
	)
	return publicURL
}

// Delete removes the object named by a URL previously returned from Upload.
func (s *MinioStore) Delete(ctx context.Context, rawURL string) bool {
	bucket, key, err := parseObjectURL(rawURL)
	if err != nil {
		s.logger.Warn("image delete skipped: unparseable URL",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("image delete failed",
			slog.String("bucket", bucket),
			slog.String("key", key),
			slog.String("cause", classifyError(err)),
			slog.String("error", err.Error()),
		)
		return false
	}

	s.logger.Info("image deleted", slog.String("bucket", bucket), slog.String("key", key))
	return true
}

func (s *MinioStore) objectURL(key string) string {
	scheme := "http"
	if s.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.config.Endpoint, s.config.Bucket, key)
}

// parseObjectURL extracts bucket and object key from a public URL of the
// path-style form scheme://endpoint/bucket/key.
func parseObjectURL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("storage: no bucket/key in path %q", u.Path)
	}
	return bucket, key, nil
}

// classifyError buckets store failures into the causes that actually happen
// in practice: wrong credentials or bucket policy, a missing bucket, or an
// object over the store's size limit.
func classifyError(err error) string {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied":
		return "access denied (check credentials and bucket policy)"
	case "NoSuchBucket":
		return "bucket does not exist"
	case "EntityTooLarge":
		return "object exceeds the store's size limit"
	default:
		if resp.Code != "" {
			return resp.Code
		}
		return "unknown"
	}
}
