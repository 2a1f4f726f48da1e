package storage

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderR2    = "r2"
	ProviderS3    = "s3"
	ProviderMinio = "minio"
	ProviderLocal = "local"
	ProviderNone  = "none"
)

// New builds the client for provider. ProviderNone yields a nil client, which
// callers treat as "uploads unavailable".
func New(ctx context.Context, provider string, opts S3Options, localDir string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderR2, ProviderS3:
		client, err := NewR2Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderMinio:
		client, err := NewMinioClient(opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderLocal:
		client, err := NewLocalClient(localDir, opts.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", provider)
	}
}
