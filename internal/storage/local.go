package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalClient stores objects on the local filesystem, for development and tests
type LocalClient struct {
	baseDir       string
	publicBaseURL string
}

func NewLocalClient(baseDir, publicBaseURL string) (*LocalClient, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalClient{
		baseDir:       baseDir,
		publicBaseURL: publicBaseURL,
	}, nil
}

// ObjectExists checks if a file exists locally
func (l *LocalClient) ObjectExists(ctx context.Context, key string) (bool, error) {
	filePath, err := l.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Upload saves data to local filesystem
func (l *LocalClient) Upload(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error) {
	filePath, err := l.path(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &UploadResult{
		Key:         key,
		URL:         l.GetPublicURL(key),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// GetPublicURL returns the public URL for a file
func (l *LocalClient) GetPublicURL(key string) string {
	return publicURL(l.publicBaseURL, key)
}

// path maps a key under baseDir, refusing keys that climb out of it.
func (l *LocalClient) path(key string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimLeft(key, "/"))
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.baseDir, clean), nil
}
