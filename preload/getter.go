package preload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Getter fetches the raw bytes behind an image URL.
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPGetter downloads http(s) URLs.
type HTTPGetter struct {
	client *http.Client
}

func NewHTTPGetter(client *http.Client) *HTTPGetter {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGetter{client: client}
}

func (h *HTTPGetter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image request returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

// FileGetter reads file:// URLs from disk.
type FileGetter struct{}

func (FileGetter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid file url %q: %w", rawURL, err)
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to read image file, %s, %w", u.Path, err)
	}
	return data, nil
}

// S3Getter downloads s3://bucket/key URLs with the s3 transfer manager.
type S3Getter struct {
	client     *s3.Client
	downloader *manager.Downloader
}

func NewS3Getter(client *s3.Client) *S3Getter {
	return &S3Getter{
		client:     client,
		downloader: manager.NewDownloader(client),
	}
}

func (s *S3Getter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, err := splitS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to stat s3 object, %s, %w", rawURL, err)
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, aws.ToInt64(head.ContentLength)))
	if _, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("unable to download object from s3, %s, %w", rawURL, err)
	}
	return buf.Bytes(), nil
}

func splitS3URL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url %q: %w", rawURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q", rawURL)
	}
	return u.Host, key, nil
}

// SchemeGetter dispatches to a Getter by URL scheme.
type SchemeGetter map[string]Getter

func (s SchemeGetter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	scheme, _, ok := strings.Cut(rawURL, "://")
	if !ok {
		return nil, fmt.Errorf("image url %q has no scheme", rawURL)
	}
	getter, ok := s[scheme]
	if !ok {
		return nil, fmt.Errorf("no getter for scheme %q", scheme)
	}
	return getter.Get(ctx, rawURL)
}

// NewSchemeGetter wires http, https and file getters, plus s3 when client is non-nil.
func NewSchemeGetter(httpClient *http.Client, s3Client *s3.Client) SchemeGetter {
	httpGetter := NewHTTPGetter(httpClient)
	getters := SchemeGetter{
		"http":  httpGetter,
		"https": httpGetter,
		"file":  FileGetter{},
	}
	if s3Client != nil {
		getters["s3"] = NewS3Getter(s3Client)
	}
	return getters
}
