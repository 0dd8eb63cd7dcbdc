package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

// Vault mirrors terminal session artifacts into S3-compatible object storage
type Vault struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

// NewVault creates a new S3/MinIO artifact vault
func NewVault(cfg *config.S3Config, logger zerolog.Logger) (*Vault, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Vault{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "artifact_vault").Logger(),
	}, nil
}

// EnsureBucket creates the vault bucket if it doesn't exist
func (v *Vault) EnsureBucket(ctx context.Context) error {
	exists, err := v.client.BucketExists(ctx, v.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := v.client.MakeBucket(ctx, v.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		v.logger.Info().Str("bucket", v.bucket).Msg("created vault bucket")
	}
	return nil
}

// Mirror uploads an artifact copy under the given object key
func (v *Vault) Mirror(ctx context.Context, objectKey string, data []byte) error {
	_, err := v.client.PutObject(ctx, v.bucket, objectKey,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("failed to mirror artifact %s: %w", objectKey, err)
	}
	v.logger.Debug().Str("object", objectKey).Msg("artifact mirrored")
	return nil
}

// NoopVault is used when the vault is not configured
type NoopVault struct{}

// Mirror is a no-op
func (NoopVault) Mirror(ctx context.Context, objectKey string, data []byte) error {
	return nil
}

var (
	_ domain.ArtifactVault = (*Vault)(nil)
	_ domain.ArtifactVault = NoopVault{}
)
