package storage

import (
	"context"
	"fmt"
	"strings"
)

// Client defines the interface that every storage provider implements
type Client interface {
	ObjectExists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error)
	GetPublicURL(key string) string
}

type UploadResult struct {
	Key         string
	URL         string
	ETag        string
	Size        int64
	ContentType string
}

// CacheControl is set on every uploaded object; keys are content addressed
// or chosen by the caller, so objects never change under a key we generate.
const CacheControl = "public, max-age=31536000, immutable"

// publicURL joins a base URL and key without doubling slashes
func publicURL(base, key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(key, "/"))
}
