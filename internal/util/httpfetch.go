package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB
	ConnectTimeout     = 10 * time.Second
	UserAgent          = "darkroom/1.0"
)

// ErrFileTooLarge is returned when a response exceeds the fetcher's size cap.
var ErrFileTooLarge = errors.New("file too large")

// FetcherOptions tunes an HTTPFetcher.
type FetcherOptions struct {
	// AllowPrivate disables the private/loopback address guard.
	AllowPrivate bool
	// MaxFileSize caps the body size; zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// HTTPFetcher handles bounded HTTP fetching with SSRF protection
type HTTPFetcher struct {
	client  *http.Client
	maxSize int64
}

func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	dialer := &net.Dialer{
		Timeout: ConnectTimeout,
	}

	dial := dialer.DialContext
	if !opts.AllowPrivate {
		// Custom dialer to prevent SSRF attacks
		dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}

			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			if len(ips) == 0 {
				return nil, fmt.Errorf("no addresses for host %s", host)
			}

			for _, ip := range ips {
				if isPrivateIP(ip.IP) {
					return nil, fmt.Errorf("connection to private IP address is not allowed: %s", ip.IP)
				}
			}

			// Dial the vetted address so a second lookup cannot rebind.
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
		}
	}

	transport := &http.Transport{
		DialContext:     dial,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	// Per-fetch deadlines come from the caller's timeout argument.
	return &HTTPFetcher{
		client:  &http.Client{Transport: transport},
		maxSize: maxSize,
	}
}

// FetchToFile downloads urlStr into path, failing if the request does not
// finish within timeout. It returns the number of bytes written.
func (f *HTTPFetcher) FetchToFile(ctx context.Context, urlStr, path string, timeout time.Duration) (int64, error) {
	if err := ValidateFetchURL(urlStr); err != nil {
		return 0, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if resp.ContentLength > f.maxSize {
		return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, resp.ContentLength, f.maxSize)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	// Read one byte past the cap to detect oversize bodies without a length.
	n, err := io.Copy(out, io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return n, fmt.Errorf("failed to read response body: %w", err)
	}
	if n > f.maxSize {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, f.maxSize)
	}

	return n, out.Close()
}

// ValidateFetchURL accepts absolute http and https URLs only.
func ValidateFetchURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("only HTTP and HTTPS URLs are allowed")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// isPrivateIP checks if an IP address is in a private/internal range
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	// 100.64.0.0/10 (carrier-grade NAT)
	if ip4 := ip.To4(); ip4 != nil {
		if ip4[0] == 100 && ip4[1]&0xc0 == 64 {
			return true
		}
	}

	return false
}
