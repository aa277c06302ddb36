// Package slideshow owns the slideshow position and the render state of the active image
package slideshow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/digitalgarden/gallery"
	"github.com/aouyang1/digitalgarden/preload"
)

// ErrEmpty is returned when an operation needs an image but the collection is empty.
var ErrEmpty = errors.New("slideshow has no images")

// State is the observable state of the image slot.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateShown
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateShown:
		return "shown"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is a snapshot of what the display surface should show.
type View struct {
	State    State
	Position int
	Total    int
	// Token identifies the render that produced this view.
	Token uint64

	Image gallery.Image
	// Loading drives the loading indicator, Visible the "show" flag on the image.
	Loading bool
	Visible bool
	// Background is the url of the blurred full-bleed decoration, empty when none.
	Background string
	// Placeholder is set when the active image failed to load.
	Placeholder bool
	Err         error
}

// Loader fetches images for display and warms upcoming ones.
type Loader interface {
	Get(ctx context.Context, url string) (preload.Entry, error)
	Cached(url string) (preload.Entry, bool)
	Prefetch(url string)
}

const DefaultRenderTimeout = 30 * time.Second

// Controller holds the current position in an image collection. Navigation wraps at
// both ends. Every render carries a token; completions for an older token are dropped.
type Controller struct {
	images        []gallery.Image
	loader        Loader
	preloaded     int
	renderTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	position int
	token    uint64
	view     View
}

// Option configures a Controller.
type Option func(*Controller)

// WithPreloaded marks the first n images as already preloaded, so navigation only
// prefetches images beyond that range.
func WithPreloaded(n int) Option {
	return func(c *Controller) { c.preloaded = n }
}

// WithRenderTimeout bounds how long a render waits for its image.
func WithRenderTimeout(d time.Duration) Option {
	return func(c *Controller) { c.renderTimeout = d }
}

func New(images []gallery.Image, loader Loader, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		images:        images,
		loader:        loader,
		renderTimeout: DefaultRenderTimeout,
		ctx:           ctx,
		cancel:        cancel,
		view:          View{State: StateEmpty},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start performs the initial render at position 0.
func (c *Controller) Start() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.images) == 0 || c.closed {
		return c.view
	}
	c.position = 0
	return c.renderLocked()
}

// Next advances one image, wrapping to the first after the last.
func (c *Controller) Next() View {
	return c.move(1)
}

// Previous steps back one image, wrapping to the last before the first.
func (c *Controller) Previous() View {
	return c.move(-1)
}

func (c *Controller) move(step int) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.images)
	if n == 0 || c.closed {
		return c.view
	}
	c.position = (c.position + step + n) % n
	view := c.renderLocked()
	c.prefetchNextLocked()
	return view
}

// Current returns the latest view.
func (c *Controller) Current() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Position returns the current index. It returns ErrEmpty when there are no images.
func (c *Controller) Position() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.images) == 0 {
		return 0, ErrEmpty
	}
	return c.position, nil
}

// Len is the number of images in the collection.
func (c *Controller) Len() int {
	return len(c.images)
}

// Image returns the image at index i.
func (c *Controller) Image(i int) (gallery.Image, bool) {
	if i < 0 || i >= len(c.images) {
		return gallery.Image{}, false
	}
	return c.images[i], true
}

// Images returns a copy of the collection in navigation order.
func (c *Controller) Images() []gallery.Image {
	out := make([]gallery.Image, len(c.images))
	copy(out, c.images)
	return out
}

// Wait blocks until all in-flight renders have settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight renders and waits for them. Navigation on a closed
// controller returns the last view without rendering.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Controller) renderLocked() View {
	if c.closed {
		return c.view
	}
	c.token++
	img := c.images[c.position]
	c.view = View{
		State:    StateLoading,
		Position: c.position,
		Total:    len(c.images),
		Token:    c.token,
		Image:    img,
		Loading:  true,
	}

	c.wg.Add(1)
	go c.load(c.token, c.position, img)
	return c.view
}

func (c *Controller) load(token uint64, position int, img gallery.Image) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.renderTimeout)
	defer cancel()
	_, err := c.loader.Get(ctx, img.URL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		slog.Debug("discarding stale render", "position", position, "token", token, "current", c.token)
		return
	}

	view := View{
		Position: position,
		Total:    len(c.images),
		Token:    token,
		Image:    img,
	}
	if err != nil {
		slog.Error("unable to load image for display", "url", img.URL, "error", err)
		view.State = StateFailed
		view.Placeholder = true
		view.Err = err
	} else {
		view.State = StateShown
		view.Visible = true
		view.Background = img.URL
	}
	c.view = view
}

// prefetchNextLocked warms the image after the current one. Images in the preloaded
// range are skipped unless the cache has since evicted them.
func (c *Controller) prefetchNextLocked() {
	next := (c.position + 1) % len(c.images)
	url := c.images[next].URL
	if next < c.preloaded {
		if _, ok := c.loader.Cached(url); ok {
			return
		}
	}
	c.loader.Prefetch(url)
}
