package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aouyang1/digitalgarden/api"
	"github.com/aouyang1/digitalgarden/config"
	"github.com/aouyang1/digitalgarden/preload"
	"github.com/aouyang1/digitalgarden/source"
	"github.com/aouyang1/digitalgarden/store"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func main() {
	cfg, err := config.Load(os.Getenv("GARDEN_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database. Config only seeds the settings row on first run.
	defaults := store.AppSettings{
		Source:                 cfg.Source,
		ShuffleEnabled:         cfg.Shuffle,
		PreloadBatchSize:       cfg.PreloadBatchSize,
		AdvanceIntervalSeconds: cfg.AdvanceIntervalSeconds,
	}
	database, err := store.NewDatabase(cfg.DBPath, defaults)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	settings, err := database.GetAppSettings()
	if err != nil {
		log.Fatalf("Failed to read settings: %v", err)
	}
	if fields := settings.Differences(defaults); len(fields) > 0 {
		slog.Warn("stored settings override config, change them with PUT /settings", "fields", fields, "db", cfg.DBPath)
	}

	// s3 is only wired when a bucket source is configured
	var s3Client *s3.Client
	if source.IsS3(settings.Source) || source.IsS3(cfg.Source) {
		s3Client, err = source.NewS3Client(ctx, cfg.AWSProfile)
		if err != nil {
			log.Fatalf("Failed to initialize s3 client: %v", err)
		}
	}

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	preloader, err := preload.New(preload.NewSchemeGetter(httpClient, s3Client), cfg.CacheSize, cfg.FetchTimeout,
		preload.WithMaxConcurrent(cfg.MaxConcurrentFetches))
	if err != nil {
		log.Fatalf("Failed to initialize preloader: %v", err)
	}

	webServer, err := api.NewWebServer(api.Options{
		DB:        database,
		Preloader: preloader,
		NewFetcher: func(src string) (source.Fetcher, error) {
			return source.New(source.Options{
				Source:      src,
				GitHubToken: cfg.GitHubToken,
				S3Client:    s3Client,
				HTTPClient:  httpClient,
			})
		},
		RenderTimeout:   cfg.RenderTimeout,
		RefreshInterval: cfg.RefreshInterval,
	})
	if err != nil {
		log.Fatalf("Failed to initialize web server: %v", err)
	}

	if err := webServer.Run(ctx, cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start web server: %v", err)
	}
	slog.Info("web server stopped")
}
