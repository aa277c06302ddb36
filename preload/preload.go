// Package preload warms an in-memory image cache ahead of display
package preload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotImage is returned when fetched bytes do not decode as jpeg, png or gif.
var ErrNotImage = errors.New("not a decodable image")

const (
	DefaultCacheSize     = 128
	DefaultFetchTimeout  = 30 * time.Second
	DefaultMaxConcurrent = 4
)

// Entry is a decoded-and-cached image.
type Entry struct {
	URL    string
	Data   []byte
	Format string
	Width  int
	Height int
}

// ContentType returns the mime type of the cached image.
func (e Entry) ContentType() string {
	return "image/" + e.Format
}

// Result is the settled outcome of one url in a Batch.
type Result struct {
	URL string
	Err error
}

type call struct {
	done  chan struct{}
	entry Entry
	err   error

	// closed when a display request joins a queued background fetch
	promote  chan struct{}
	promoted bool
}

// Preloader fetches, decodes and caches images. Concurrent requests for the same url
// share a single in-flight fetch.
type Preloader struct {
	getter    Getter
	cache     *lru.Cache[string, Entry]
	cacheSize int
	timeout   time.Duration

	// limits concurrent best-effort fetches; display and batch fetches skip it
	semaphore chan struct{}

	mu       sync.Mutex
	inflight map[string]*call
}

// Option configures a Preloader.
type Option func(*Preloader)

// WithMaxConcurrent caps how many background prefetches hit the getter at once.
func WithMaxConcurrent(n int) Option {
	return func(p *Preloader) {
		if n > 0 {
			p.semaphore = make(chan struct{}, n)
		}
	}
}

func New(getter Getter, cacheSize int, timeout time.Duration, opts ...Option) (*Preloader, error) {
	if getter == nil {
		return nil, errors.New("no getter provided for preloader")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	cache, err := lru.New[string, Entry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create preload cache: %w", err)
	}

	p := &Preloader{
		getter:    getter,
		cache:     cache,
		cacheSize: cacheSize,
		timeout:   timeout,
		semaphore: make(chan struct{}, DefaultMaxConcurrent),
		inflight:  make(map[string]*call),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Get returns the cached image for url, fetching it if needed. A cancelled ctx stops
// the wait but not the shared fetch, which still settles into the cache.
func (p *Preloader) Get(ctx context.Context, url string) (Entry, error) {
	if entry, ok := p.cache.Get(url); ok {
		return entry, nil
	}

	c := p.start(url, false)
	select {
	case <-c.done:
		return c.entry, c.err
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

// Cached returns the image for url only if it has already been loaded.
func (p *Preloader) Cached(url string) (Entry, bool) {
	return p.cache.Peek(url)
}

// Len is the number of cached images.
func (p *Preloader) Len() int {
	return p.cache.Len()
}

// Cap is the maximum number of cached images.
func (p *Preloader) Cap() int {
	return p.cacheSize
}

// Batch requests every url concurrently and returns once all of them have settled,
// successfully or not. Results are in the order of urls.
func (p *Preloader) Batch(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		i, url := i, url
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Get(ctx, url)
			results[i] = Result{URL: url, Err: err}
		}()
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			slog.Warn("unable to preload image", "url", r.URL, "error", r.Err)
		}
	}
	slog.Info("preloaded image batch", "count", len(urls), "failed", failed, "cached", p.Len())
	return results
}

// Prefetch is best-effort: it starts loading url in the background and returns
// immediately. Failures are dropped since the image is requested again at display time.
func (p *Preloader) Prefetch(url string) {
	if p.cache.Contains(url) {
		return
	}
	p.start(url, true)
}

// PrefetchAll prefetches every url best-effort.
func (p *Preloader) PrefetchAll(urls []string) {
	for _, url := range urls {
		p.Prefetch(url)
	}
}

func (p *Preloader) start(url string, background bool) *call {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.inflight[url]; ok {
		if !background && !c.promoted {
			c.promoted = true
			close(c.promote)
		}
		return c
	}

	c := &call{done: make(chan struct{}), promote: make(chan struct{}), promoted: !background}
	p.inflight[url] = c
	go p.fetch(url, c, background)
	return c
}

func (p *Preloader) fetch(url string, c *call, background bool) {
	if background {
		select {
		case p.semaphore <- struct{}{}:
			defer func() { <-p.semaphore }()
		case <-c.promote:
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	c.entry, c.err = p.load(ctx, url)
	if c.err == nil {
		p.cache.Add(url, c.entry)
	} else {
		slog.Debug("image load failed", "url", url, "error", c.err)
	}

	p.mu.Lock()
	delete(p.inflight, url)
	p.mu.Unlock()
	close(c.done)
}

func (p *Preloader) load(ctx context.Context, url string) (Entry, error) {
	data, err := p.getter.Get(ctx, url)
	if err != nil {
		return Entry{}, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %v", ErrNotImage, url, err)
	}

	slog.Debug("loaded image", "url", url, "format", format, "size", humanize.Bytes(uint64(len(data))))
	return Entry{
		URL:    url,
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
