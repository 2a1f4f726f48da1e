package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient stores objects in a MinIO deployment.
type MinioClient struct {
	minio         *minio.Client
	bucket        string
	publicBaseURL string
}

func NewMinioClient(opts S3Options) (*MinioClient, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	host, secure, err := splitEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	mc, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioClient{
		minio:         mc,
		bucket:        opts.Bucket,
		publicBaseURL: opts.PublicBaseURL,
	}, nil
}

func (c *MinioClient) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.minio.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s: %w", key, err)
}

func (c *MinioClient) Upload(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error) {
	info, err := c.minio.PutObject(
		ctx,
		c.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  contentType,
			CacheControl: CacheControl,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	return &UploadResult{
		Key:         key,
		URL:         c.GetPublicURL(key),
		ETag:        info.ETag,
		Size:        info.Size,
		ContentType: contentType,
	}, nil
}

func (c *MinioClient) GetPublicURL(key string) string {
	return publicURL(c.publicBaseURL, key)
}

// splitEndpoint accepts either host:port or a full URL.
func splitEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("minio endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, false, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid minio endpoint: %w", err)
	}
	return u.Host, u.Scheme == "https", nil
}
