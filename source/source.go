// Package source fetches directory listings that feed the slideshow
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Entry is one file record of a directory listing.
type Entry struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	Type        string `json:"type"`
}

// Fetcher retrieves a directory listing. One call performs one listing request.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Entry, error)
}

// Options select and configure a Fetcher.
type Options struct {
	// Source is an http(s) listing endpoint, an s3://bucket/prefix location, or a
	// local directory (optionally as a file:// URL).
	Source string

	GitHubToken string

	// S3Client is required for s3 sources.
	S3Client *s3.Client

	HTTPClient *http.Client
}

const defaultHTTPTimeout = 30 * time.Second

// New returns the Fetcher matching the scheme of opts.Source.
func New(opts Options) (Fetcher, error) {
	raw := strings.TrimSpace(opts.Source)
	if raw == "" {
		return nil, fmt.Errorf("no listing source configured")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid listing source %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http", "https":
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: defaultHTTPTimeout}
		}
		return NewGitHubFetcher(raw, opts.GitHubToken, client), nil
	case "s3":
		if opts.S3Client == nil {
			return nil, fmt.Errorf("s3 source %q requires an s3 client", raw)
		}
		return NewS3Fetcher(opts.S3Client, u.Host, strings.TrimPrefix(u.Path, "/")), nil
	case "file":
		return NewLocalFetcher(u.Path), nil
	case "":
		return NewLocalFetcher(raw), nil
	default:
		return nil, fmt.Errorf("unsupported listing source scheme %q", u.Scheme)
	}
}

// IsS3 reports whether the source is an s3:// location.
func IsS3(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "s3://")
}
