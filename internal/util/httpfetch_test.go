package util

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFetchToFile(t *testing.T) {
	body := []byte("not really a jpeg")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image.jpg":
			if r.Header.Get("User-Agent") != UserAgent {
				t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
			}
			w.Write(body)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write(body)
		case "/big":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(FetcherOptions{AllowPrivate: true, MaxFileSize: 32})
	dir := t.TempDir()

	t.Run("ok", func(t *testing.T) {
		path := filepath.Join(dir, "ok")
		n, err := fetcher.FetchToFile(context.Background(), srv.URL+"/image.jpg", path, time.Second)
		if err != nil {
			t.Fatalf("FetchToFile returned error: %v", err)
		}
		if n != int64(len(body)) {
			t.Errorf("wrote %d bytes, expected %d", n, len(body))
		}
		got, _ := os.ReadFile(path)
		if string(got) != string(body) {
			t.Errorf("file content = %q", got)
		}
	})

	t.Run("non-2xx", func(t *testing.T) {
		_, err := fetcher.FetchToFile(context.Background(), srv.URL+"/missing", filepath.Join(dir, "missing"), time.Second)
		if err == nil || !strings.Contains(err.Error(), "404") {
			t.Errorf("expected HTTP 404 error, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := fetcher.FetchToFile(context.Background(), srv.URL+"/slow", filepath.Join(dir, "slow"), 20*time.Millisecond)
		if err == nil {
			t.Error("expected timeout error")
		}
	})

	t.Run("too large", func(t *testing.T) {
		_, err := fetcher.FetchToFile(context.Background(), srv.URL+"/big", filepath.Join(dir, "big"), time.Second)
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("expected ErrFileTooLarge, got %v", err)
		}
	})
}

func TestFetchToFileBlocksPrivateAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("private address should never be reached")
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(FetcherOptions{})
	_, err := fetcher.FetchToFile(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out"), time.Second)
	if err == nil || !strings.Contains(err.Error(), "private IP") {
		t.Errorf("expected private IP rejection, got %v", err)
	}
}

func TestValidateFetchURL(t *testing.T) {
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/a.jpg", true},
		{"http://example.com/a.jpg", true},
		{"ftp://example.com/a.jpg", false},
		{"file:///etc/passwd", false},
		{"/relative/path", false},
		{"https://", false},
	}
	for _, test := range tests {
		err := ValidateFetchURL(test.url)
		if (err == nil) != test.ok {
			t.Errorf("ValidateFetchURL(%s) error = %v, expected ok=%v", test.url, err, test.ok)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.20.0.1", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"2606:4700:4700::1111", false},
	}
	for _, test := range tests {
		if got := isPrivateIP(net.ParseIP(test.ip)); got != test.expected {
			t.Errorf("isPrivateIP(%s) = %v, expected %v", test.ip, got, test.expected)
		}
	}
}
