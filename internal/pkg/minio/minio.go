package minio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/logger"
)

// Config defines the object storage configuration
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"accesskey"`
	SecretKey string `mapstructure:"secretkey"`
	UseSSL    bool   `mapstructure:"usessl"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
}

// Validate validates the object storage configuration
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("minio credentials are required")
	}
	if c.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	return nil
}

// New creates a MinIO client and ensures the configured bucket exists
func New(cfg *Config, log *logger.Logger) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid minio configuration: %w", err)
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	}
	if cfg.Region != "" {
		opts.Region = cfg.Region
	}

	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, err
	}

	log.Info("minio client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket),
		zap.Bool("use_ssl", cfg.UseSSL))

	return client, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		// Another instance may have created it concurrently
		exists, checkErr := client.BucketExists(ctx, bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}
