package data

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/file/biz"
)

// minioStorage 基于 MinIO 的对象存储实现
type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorage 创建 MinIO 对象存储服务
func NewMinIOStorage(client *minio.Client, bucket string) biz.StorageService {
	return &minioStorage{
		client: client,
		bucket: bucket,
	}
}

// Upload 上传对象
func (s *minioStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Download 下载对象
func (s *minioStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	// GetObject 是惰性的，Stat 确认对象存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	return obj, nil
}

// Exists 判断对象是否存在
func (s *minioStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return true, nil
}
