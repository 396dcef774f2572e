// Package minio stores document bytes in a MinIO (or other S3-compatible)
// bucket through the MinIO client.
package minio

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"firmdocs/internal/config"
	"firmdocs/internal/port"
)

type minioStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects to the endpoint and creates the bucket if missing.
func NewMinIOStore(ctx context.Context, cfg *config.StorageConfig) (port.ObjectStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &minioStore{client: cli, bucket: cfg.Bucket}, nil
}

func (m *minioStore) Put(ctx context.Context, input port.PutInput) (*port.PutOutput, error) {
	info, err := m.client.PutObject(ctx, m.bucket, input.Key, input.Body, input.Size, minio.PutObjectOptions{
		ContentType:  input.ContentType,
		UserMetadata: input.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("minio put: %w", err)
	}
	return &port.PutOutput{Location: info.Bucket + "/" + info.Key, ETag: info.ETag}, nil
}

func (m *minioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete: %w", err)
	}
	return nil
}
