package slideshow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aouyang1/digitalgarden/gallery"
	"github.com/aouyang1/digitalgarden/preload"
	"github.com/aouyang1/digitalgarden/source"
)

const DefaultPreloadBatchSize = 5

// BuildOptions configure Build.
type BuildOptions struct {
	Strategy         gallery.Strategy
	PreloadBatchSize int
	RenderTimeout    time.Duration
}

// Build fetches the listing, filters and orders it, preloads the first batch, renders
// position 0 and warms as much of the rest as the cache holds in the background. A fetch
// failure returns an error and no controller.
func Build(ctx context.Context, fetcher source.Fetcher, p *preload.Preloader, opts BuildOptions) (*Controller, error) {
	entries, err := fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch listing: %w", err)
	}

	strategy := opts.Strategy
	if strategy == nil {
		strategy = gallery.Identity{}
	}
	images := strategy.Order(gallery.Filter(entries))
	if len(images) == 0 {
		slog.Warn("listing has no images", "entries", len(entries))
	}

	batchSize := opts.PreloadBatchSize
	if batchSize < 0 {
		batchSize = 0
	}
	batchSize = min(batchSize, len(images))

	urls := gallery.URLs(images)
	p.Batch(ctx, urls[:batchSize])

	var ctrlOpts []Option
	ctrlOpts = append(ctrlOpts, WithPreloaded(batchSize))
	if opts.RenderTimeout > 0 {
		ctrlOpts = append(ctrlOpts, WithRenderTimeout(opts.RenderTimeout))
	}
	ctrl := New(images, p, ctrlOpts...)
	ctrl.Start()

	// warm only what fits beside the preloaded batch; the rest is prefetched on navigation
	warm := urls[batchSize:]
	if room := max(p.Cap()-batchSize, 0); len(warm) > room {
		warm = warm[:room]
	}
	p.PrefetchAll(warm)

	slog.Info("built slideshow", "entries", len(entries), "images", len(images), "preloaded", batchSize, "warming", len(warm))
	return ctrl, nil
}
