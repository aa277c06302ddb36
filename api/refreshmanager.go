package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aouyang1/digitalgarden/gallery"
	"github.com/aouyang1/digitalgarden/source"
	mapset "github.com/deckarep/golang-set/v2"
)

const defaultRefreshInterval = time.Hour

// RefreshManager periodically refetches the listing and signals Updated when the set
// of image urls differs from the one currently shown.
type RefreshManager struct {
	interval time.Duration

	fetcher func() (source.Fetcher, error)
	current func() mapset.Set[string]

	Updated chan bool
}

func NewRefreshManager(interval time.Duration, fetcher func() (source.Fetcher, error), current func() mapset.Set[string]) (*RefreshManager, error) {
	if fetcher == nil || current == nil {
		return nil, errors.New("refresh manager needs a fetcher and the current image set")
	}
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &RefreshManager{
		interval: interval,
		fetcher:  fetcher,
		current:  current,
		Updated:  make(chan bool, 1),
	}, nil
}

// CheckForUpdates fetches the listing once and reports whether the image set changed.
func (r *RefreshManager) CheckForUpdates(ctx context.Context) (bool, error) {
	fetcher, err := r.fetcher()
	if err != nil {
		return false, err
	}
	entries, err := fetcher.Fetch(ctx)
	if err != nil {
		return false, err
	}

	remote := mapset.NewSet(gallery.URLs(gallery.Filter(entries))...)
	local := r.current()

	added := remote.Difference(local).ToSlice()
	removed := local.Difference(remote).ToSlice()
	if len(added) == 0 && len(removed) == 0 {
		return false, nil
	}

	slog.Info("listing changed", "added", len(added), "removed", len(removed))
	select {
	case r.Updated <- true:
	default:
		// an update is already pending
	}
	return true, nil
}

func (r *RefreshManager) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if _, err := r.CheckForUpdates(checkCtx); err != nil {
				slog.Warn("error while checking listing for updates", "error", err)
			}
			cancel()
		}
	}
}
