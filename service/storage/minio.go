package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/clipsift/evidence-go/service/config"
)

type minioService struct {
	client *minio.Client
	bucket string
}

// NewMinio archives evidence files to an S3-compatible bucket.
func NewMinio(cfgSvc config.IService) (IService, error) {
	params := cfgSvc.GetArchiveParameters()

	client, err := minio.New(params.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(params.AccessKey, params.SecretKey, ""),
		Secure: params.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive client: %w", err)
	}

	return &minioService{
		client: client,
		bucket: params.Bucket,
	}, nil
}

func (svc *minioService) StoreFile(ctx context.Context, path string) (string, error) {
	key := filepath.Base(path)

	exists, err := svc.client.BucketExists(ctx, svc.bucket)
	if err != nil {
		return "", fmt.Errorf("archive bucket check: %w", err)
	}
	if !exists {
		if err := svc.client.MakeBucket(ctx, svc.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("archive bucket create: %w", err)
		}
	}

	if _, err := svc.client.FPutObject(ctx, svc.bucket, key, path, minio.PutObjectOptions{}); err != nil {
		return "", fmt.Errorf("archive upload %s: %w", key, err)
	}

	return fmt.Sprintf("s3://%s/%s", svc.bucket, key), nil
}

func (svc *minioService) Enabled() bool {
	return true
}
