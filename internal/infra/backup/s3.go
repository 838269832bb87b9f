package backup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Snapshotter uploads copies of the QA store file to an S3-compatible
// bucket so curated content survives host loss.
type S3Snapshotter struct {
	client    *minio.Client
	bucket    string
	storePath string
	logger    *slog.Logger
}

// NewS3Snapshotter constructs the snapshotter.
func NewS3Snapshotter(endpoint, accessKey, secretKey, bucket, region, storePath string, logger *slog.Logger) (*S3Snapshotter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleanEndpoint := sanitizeEndpoint(endpoint)
	useSSL := strings.HasPrefix(strings.ToLower(endpoint), "https")
	client, err := minio.New(cleanEndpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init backup client: %w", err)
	}
	return &S3Snapshotter{
		client:    client,
		bucket:    bucket,
		storePath: storePath,
		logger:    logger.With("component", "backup.s3"),
	}, nil
}

// Snapshot uploads the current QA store bytes under a timestamped key.
// A missing store file is not an error; there is nothing to back up yet.
func (s *S3Snapshotter) Snapshot(ctx context.Context) error {
	data, err := os.ReadFile(s.storePath)
	if os.IsNotExist(err) {
		s.logger.Info("qa store file absent, skipping snapshot", "path", s.storePath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read qa store for snapshot: %w", err)
	}

	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure backup bucket: %w", err)
	}

	key := fmt.Sprintf("qa/qa-%s.json", time.Now().UTC().Format("20060102T150405Z"))
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	s.logger.Info("qa snapshot uploaded", "bucket", s.bucket, "key", key, "bytes", len(data))
	return nil
}

func (s *S3Snapshotter) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

func sanitizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimSuffix(endpoint, "/")
}
