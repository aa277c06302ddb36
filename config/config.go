// Package config loads service configuration from an optional TOML file and GARDEN_* environment variables
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	ListenAddr  string
	DBPath      string
	Source      string
	AWSProfile  string
	GitHubToken string

	Shuffle                bool
	PreloadBatchSize       int
	AdvanceIntervalSeconds int

	CacheSize            int
	MaxConcurrentFetches int
	FetchTimeout         time.Duration
	RenderTimeout   time.Duration
	RefreshInterval time.Duration
}

const (
	DefaultSource           = "https://api.github.com/repos/codemorphist/DigitalGarden/contents/gallery"
	defaultListenAddr       = "0.0.0.0:8080"
	defaultDBPath           = "garden.db"
	defaultPreloadBatchSize = 5
	defaultCacheSize        = 128
	defaultMaxConcurrent    = 4
	defaultFetchTimeout     = 30 * time.Second
	defaultRenderTimeout    = 30 * time.Second
	defaultRefreshInterval  = time.Hour
)

// Default returns the configuration used when no file or environment is set.
func Default() Config {
	return Config{
		ListenAddr:           defaultListenAddr,
		DBPath:               defaultDBPath,
		Source:               DefaultSource,
		PreloadBatchSize:     defaultPreloadBatchSize,
		CacheSize:            defaultCacheSize,
		MaxConcurrentFetches: defaultMaxConcurrent,
		FetchTimeout:         defaultFetchTimeout,
		RenderTimeout:        defaultRenderTimeout,
		RefreshInterval:      defaultRefreshInterval,
	}
}

type fileConfig struct {
	ListenAddr             string `toml:"listen_addr"`
	DBPath                 string `toml:"db_path"`
	Source                 string `toml:"source"`
	AWSProfile             string `toml:"aws_profile"`
	GitHubToken            string `toml:"github_token"`
	Shuffle                *bool  `toml:"shuffle"`
	PreloadBatchSize       *int   `toml:"preload_batch_size"`
	AdvanceIntervalSeconds *int   `toml:"advance_interval_seconds"`
	CacheSize              *int   `toml:"cache_size"`
	MaxConcurrentFetches   *int   `toml:"max_concurrent_fetches"`
	FetchTimeout           string `toml:"fetch_timeout"`
	RenderTimeout          string `toml:"render_timeout"`
	RefreshInterval        string `toml:"refresh_interval"`
}

// Load reads path (when non-empty and present) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("config file not found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.ListenAddr, raw.ListenAddr)
	setString(&c.DBPath, raw.DBPath)
	setString(&c.Source, raw.Source)
	setString(&c.AWSProfile, raw.AWSProfile)
	setString(&c.GitHubToken, raw.GitHubToken)
	if raw.Shuffle != nil {
		c.Shuffle = *raw.Shuffle
	}
	if raw.PreloadBatchSize != nil {
		c.PreloadBatchSize = *raw.PreloadBatchSize
	}
	if raw.AdvanceIntervalSeconds != nil {
		c.AdvanceIntervalSeconds = *raw.AdvanceIntervalSeconds
	}
	if raw.CacheSize != nil {
		c.CacheSize = *raw.CacheSize
	}
	if raw.MaxConcurrentFetches != nil {
		c.MaxConcurrentFetches = *raw.MaxConcurrentFetches
	}
	for _, d := range []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&c.FetchTimeout, raw.FetchTimeout, "fetch_timeout"},
		{&c.RenderTimeout, raw.RenderTimeout, "render_timeout"},
		{&c.RefreshInterval, raw.RefreshInterval, "refresh_interval"},
	} {
		if err := setDuration(d.dst, d.raw); err != nil {
			return fmt.Errorf("parse config %s: %w", d.key, err)
		}
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.ListenAddr, os.Getenv("GARDEN_LISTEN_ADDR"))
	setString(&c.DBPath, os.Getenv("GARDEN_DB_PATH"))
	setString(&c.Source, os.Getenv("GARDEN_SOURCE"))
	setString(&c.AWSProfile, os.Getenv("GARDEN_AWS_PROFILE"))
	setString(&c.GitHubToken, os.Getenv("GARDEN_GITHUB_TOKEN"))

	if v := strings.TrimSpace(os.Getenv("GARDEN_SHUFFLE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("unable to parse GARDEN_SHUFFLE %q: %w", v, err)
		}
		c.Shuffle = b
	}
	for _, i := range []struct {
		dst *int
		key string
	}{
		{&c.PreloadBatchSize, "GARDEN_PRELOAD_BATCH_SIZE"},
		{&c.AdvanceIntervalSeconds, "GARDEN_ADVANCE_INTERVAL_SECONDS"},
		{&c.CacheSize, "GARDEN_CACHE_SIZE"},
		{&c.MaxConcurrentFetches, "GARDEN_MAX_CONCURRENT_FETCHES"},
	} {
		v := strings.TrimSpace(os.Getenv(i.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("unable to parse %s %q: %w", i.key, v, err)
		}
		*i.dst = n
	}
	for _, d := range []struct {
		dst *time.Duration
		key string
	}{
		{&c.FetchTimeout, "GARDEN_FETCH_TIMEOUT"},
		{&c.RenderTimeout, "GARDEN_RENDER_TIMEOUT"},
		{&c.RefreshInterval, "GARDEN_REFRESH_INTERVAL"},
	} {
		if err := setDuration(d.dst, os.Getenv(d.key)); err != nil {
			return fmt.Errorf("unable to parse %s: %w", d.key, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.PreloadBatchSize < 0 {
		return fmt.Errorf("preload_batch_size must be non-negative, got %d", c.PreloadBatchSize)
	}
	if c.AdvanceIntervalSeconds < 0 {
		return fmt.Errorf("advance_interval_seconds must be non-negative, got %d", c.AdvanceIntervalSeconds)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	if c.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("max_concurrent_fetches must be positive, got %d", c.MaxConcurrentFetches)
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
