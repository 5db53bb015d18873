// Package storage uploads ticket attachments to an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/service-request-desk/internal/config"
	"github.com/spec-kit/service-request-desk/internal/domain"
)

// File is an uploaded document waiting to be stored.
type File struct {
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
}

// ObjectPutter is the subset of the minio client used here.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// DocumentStore writes attachments under a per-owner prefix.
type DocumentStore struct {
	client    ObjectPutter
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewDocumentStore connects to the configured endpoint and makes sure the bucket exists.
func NewDocumentStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*DocumentStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("created attachment bucket", zap.String("bucket", cfg.Bucket))
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return NewDocumentStoreWithClient(client, cfg.Bucket, publicURL, logger), nil
}

// NewDocumentStoreWithClient builds a store over an existing client.
func NewDocumentStoreWithClient(client ObjectPutter, bucket, publicURL string, logger *zap.Logger) *DocumentStore {
	return &DocumentStore{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// Upload stores file under prefix with a generated name and returns its reference.
func (s *DocumentStore) Upload(ctx context.Context, prefix string, file File) (*domain.Attachment, error) {
	original := filepath.Base(strings.TrimSpace(file.OriginalName))
	if original == "." || original == "/" || original == "" {
		original = "attachment"
	}
	fileName := uuid.NewString() + strings.ToLower(filepath.Ext(original))
	object := path.Join(strings.Trim(prefix, "/"), fileName)

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, object, file.Body, file.Size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"original-name": original},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", object, err)
	}
	s.logger.Debug("attachment stored",
		zap.String("object", object),
		zap.Int64("size", info.Size))

	return &domain.Attachment{
		URL:          s.publicURL + "/" + object,
		FileName:     fileName,
		OriginalName: original,
	}, nil
}
