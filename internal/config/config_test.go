package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PIXLOAD_IMAGE_TOKEN", "")
	t.Setenv("STORAGE_PROVIDER", "")
	t.Setenv("MAGICK_THREAD_LIMIT", "")
	t.Setenv("SOURCE_FETCH_TIMEOUT", "")

	cfg := Load()
	if cfg.AuthToken != DefaultToken {
		t.Errorf("AuthToken = %q, expected %q", cfg.AuthToken, DefaultToken)
	}
	if cfg.StorageProvider != "r2" {
		t.Errorf("StorageProvider = %q", cfg.StorageProvider)
	}
	if cfg.MagickThreadLimit != 1 {
		t.Errorf("MagickThreadLimit = %d", cfg.MagickThreadLimit)
	}
	if cfg.SourceFetchTimeout != 15*time.Second || cfg.OverlayFetchTimeout != 10*time.Second {
		t.Errorf("fetch timeouts = %s / %s", cfg.SourceFetchTimeout, cfg.OverlayFetchTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PIXLOAD_IMAGE_TOKEN", "s3cret")
	t.Setenv("MAGICK_THREAD_LIMIT", "4")
	t.Setenv("SOURCE_FETCH_TIMEOUT", "30")
	t.Setenv("OVERLAY_FETCH_TIMEOUT", "2500ms")
	t.Setenv("FETCH_ALLOW_PRIVATE", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg := Load()
	if cfg.AuthToken != "s3cret" {
		t.Errorf("AuthToken = %q", cfg.AuthToken)
	}
	if cfg.MagickThreadLimit != 4 {
		t.Errorf("MagickThreadLimit = %d", cfg.MagickThreadLimit)
	}
	if cfg.SourceFetchTimeout != 30*time.Second {
		t.Errorf("SourceFetchTimeout = %s", cfg.SourceFetchTimeout)
	}
	if cfg.OverlayFetchTimeout != 2500*time.Millisecond {
		t.Errorf("OverlayFetchTimeout = %s", cfg.OverlayFetchTimeout)
	}
	if !cfg.FetchAllowPrivate {
		t.Error("FetchAllowPrivate should be true")
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAGICK_THREAD_LIMIT", "many")
	t.Setenv("SOURCE_FETCH_TIMEOUT", "soon")

	cfg := Load()
	if cfg.MagickThreadLimit != 1 {
		t.Errorf("MagickThreadLimit = %d, expected default", cfg.MagickThreadLimit)
	}
	if cfg.SourceFetchTimeout != 15*time.Second {
		t.Errorf("SourceFetchTimeout = %s, expected default", cfg.SourceFetchTimeout)
	}
}
