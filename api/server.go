// Package api is the main api web server
package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/aouyang1/digitalgarden/api/models"
	"github.com/aouyang1/digitalgarden/api/web/templates"
	"github.com/aouyang1/digitalgarden/gallery"
	"github.com/aouyang1/digitalgarden/preload"
	"github.com/aouyang1/digitalgarden/slideshow"
	"github.com/aouyang1/digitalgarden/source"
	"github.com/aouyang1/digitalgarden/store"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gin-gonic/gin"
)

//go:embed web/templates/index.html web/static
var webFiles embed.FS

var errNotInitialized = errors.New("slideshow is not initialized")

// Options are the dependencies of a WebServer.
type Options struct {
	DB        *store.Database
	Preloader *preload.Preloader
	// NewFetcher builds the listing fetcher for a configured source.
	NewFetcher func(src string) (source.Fetcher, error)

	RenderTimeout   time.Duration
	RefreshInterval time.Duration
}

type WebServer struct {
	router    *gin.Engine
	db        *store.Database
	preloader *preload.Preloader

	newFetcher    func(src string) (source.Fetcher, error)
	renderTimeout time.Duration

	refreshManager *RefreshManager
	advanceManager *AdvanceManager

	// this ensures only one go routine can rebuild the slideshow at a time
	reloadMutex sync.Mutex

	mu   sync.RWMutex
	show *slideshow.Controller
}

func NewWebServer(opts Options) (*WebServer, error) {
	if opts.DB == nil || opts.Preloader == nil || opts.NewFetcher == nil {
		return nil, errors.New("web server needs a database, a preloader and a fetcher factory")
	}

	ws := &WebServer{
		router:        gin.Default(),
		db:            opts.DB,
		preloader:     opts.Preloader,
		newFetcher:    opts.NewFetcher,
		renderTimeout: opts.RenderTimeout,
	}

	refreshManager, err := NewRefreshManager(opts.RefreshInterval, ws.currentFetcher, ws.currentURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize refresh manager: %w", err)
	}
	advanceManager, err := NewAdvanceManager(opts.DB, ws.advance)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize advance manager: %w", err)
	}
	ws.refreshManager = refreshManager
	ws.advanceManager = advanceManager

	if err := ws.setupRoutes(); err != nil {
		return nil, err
	}
	return ws, nil
}

func (ws *WebServer) setupRoutes() error {
	// Create filesystem for static files (strip "web/" prefix)
	staticFS, err := fs.Sub(webFiles, "web/static")
	if err != nil {
		return fmt.Errorf("failed to create static filesystem: %w", err)
	}

	ws.router.StaticFS("static", http.FS(staticFS))

	serveFavicon := func(c *gin.Context) {
		data, err := webFiles.ReadFile("web/static/images/favicon.svg")
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "image/svg+xml", data)
	}
	ws.router.GET("/favicon.ico", serveFavicon)
	ws.router.GET("/favicon.svg", serveFavicon)

	ws.router.GET("/", func(c *gin.Context) {
		data, err := webFiles.ReadFile("web/templates/index.html")
		if err != nil {
			slog.Error("failed to read index.html", "error", err)
			c.String(http.StatusInternalServerError, "Failed to load index.html")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", data)
	})
	ws.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ws.router.GET("/slideshow", ws.handleCurrent)
	ws.router.POST("/slideshow/next", ws.handleNext)
	ws.router.POST("/slideshow/previous", ws.handlePrevious)
	ws.router.GET("/slideshow/image/:position", ws.handleImage)
	ws.router.POST("/slideshow/reload", ws.handleReload)
	ws.router.GET("/settings", ws.handleGetSettings)
	ws.router.PUT("/settings", ws.handleUpdateSettings)
	return nil
}

// Run builds the slideshow, starts the background managers and serves http on addr
// until ctx is cancelled.
func (ws *WebServer) Run(ctx context.Context, addr string) error {
	if err := ws.Reload(ctx); err != nil {
		// the server stays up; slideshow routes report 503 until a reload succeeds
		slog.Error("unable to build slideshow", "error", err)
	}

	go ws.refreshManager.Run(ctx)
	go ws.advanceManager.Run(ctx)

	// listen for updates and rebuild the slideshow
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ws.refreshManager.Updated:
			}
			slog.Info("found new updates, rebuilding slideshow")
			if err := ws.Reload(ctx); err != nil {
				slog.Error("error while rebuilding slideshow from update", "error", err)
			}
		}
	}()

	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting web server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}

	if show := ws.controller(); show != nil {
		show.Close()
	}
	return nil
}

// Reload fetches the listing for the configured source and replaces the slideshow.
// On failure the previous slideshow, if any, stays in place.
func (ws *WebServer) Reload(ctx context.Context) error {
	ws.reloadMutex.Lock()
	defer ws.reloadMutex.Unlock()

	settings, err := ws.db.GetAppSettings()
	if err != nil {
		return fmt.Errorf("error while getting settings: %w", err)
	}
	fetcher, err := ws.newFetcher(settings.Source)
	if err != nil {
		return fmt.Errorf("error while creating fetcher: %w", err)
	}

	show, err := slideshow.Build(ctx, fetcher, ws.preloader, slideshow.BuildOptions{
		Strategy:         gallery.StrategyFor(settings.ShuffleEnabled),
		PreloadBatchSize: settings.PreloadBatchSize,
		RenderTimeout:    ws.renderTimeout,
	})
	if err != nil {
		return err
	}

	ws.mu.Lock()
	old := ws.show
	ws.show = show
	ws.mu.Unlock()

	if old != nil {
		old.Close()
	}
	ws.advanceManager.Touch()
	return nil
}

func (ws *WebServer) controller() *slideshow.Controller {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.show
}

func (ws *WebServer) currentFetcher() (source.Fetcher, error) {
	settings, err := ws.db.GetAppSettings()
	if err != nil {
		return nil, err
	}
	return ws.newFetcher(settings.Source)
}

func (ws *WebServer) currentURLs() mapset.Set[string] {
	show := ws.controller()
	if show == nil {
		return mapset.NewSet[string]()
	}
	return mapset.NewSet(gallery.URLs(show.Images())...)
}

func (ws *WebServer) advance() {
	if show := ws.controller(); show != nil {
		show.Next()
	}
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

func (ws *WebServer) respondView(c *gin.Context, view slideshow.View) {
	resp := models.NewSlideshowResponse(view)
	if isHTMX(c) {
		ws.render(c, http.StatusOK, templates.Slide(resp))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (ws *WebServer) respondError(c *gin.Context, status int, err error) {
	if isHTMX(c) {
		ws.render(c, status, templates.Unavailable(err.Error()))
		return
	}
	c.JSON(status, models.ErrorResponse{Error: err.Error()})
}

func (ws *WebServer) render(c *gin.Context, status int, component templ.Component) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		slog.Error("failed to render fragment", "error", err)
	}
}

func (ws *WebServer) handleCurrent(c *gin.Context) {
	show := ws.controller()
	if show == nil {
		ws.respondError(c, http.StatusServiceUnavailable, errNotInitialized)
		return
	}
	ws.respondView(c, show.Current())
}

func (ws *WebServer) handleNext(c *gin.Context) {
	show := ws.controller()
	if show == nil {
		ws.respondError(c, http.StatusServiceUnavailable, errNotInitialized)
		return
	}
	ws.advanceManager.Touch()
	ws.respondView(c, show.Next())
}

func (ws *WebServer) handlePrevious(c *gin.Context) {
	show := ws.controller()
	if show == nil {
		ws.respondError(c, http.StatusServiceUnavailable, errNotInitialized)
		return
	}
	ws.advanceManager.Touch()
	ws.respondView(c, show.Previous())
}

func (ws *WebServer) handleImage(c *gin.Context) {
	show := ws.controller()
	if show == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: errNotInitialized.Error()})
		return
	}

	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid position parameter"})
		return
	}
	img, ok := show.Image(position)
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("No image at position %d", position)})
		return
	}
	// the slideshow was rebuilt since the path was issued
	if id := c.Query("id"); id != "" && id != img.Key() {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("Image at position %d has changed", position)})
		return
	}

	entry, err := ws.preloader.Get(c.Request.Context(), img.URL)
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to load image: %v", err)})
		return
	}

	c.Header("Cache-Control", "public, max-age=60")
	c.Data(http.StatusOK, entry.ContentType(), entry.Data)
}

func (ws *WebServer) handleReload(c *gin.Context) {
	if err := ws.Reload(c.Request.Context()); err != nil {
		slog.Error("error while reloading slideshow", "error", err)
		ws.respondError(c, http.StatusBadGateway, fmt.Errorf("failed to reload slideshow: %w", err))
		return
	}

	show := ws.controller()
	if isHTMX(c) {
		ws.respondView(c, show.Current())
		return
	}
	c.JSON(http.StatusOK, models.ReloadResponse{
		Total:   show.Len(),
		Message: "Slideshow reloaded",
	})
}

func (ws *WebServer) handleGetSettings(c *gin.Context) {
	settings, err := ws.db.GetAppSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to get settings: %v", err)})
		return
	}
	c.JSON(http.StatusOK, models.SettingsResponse(*settings))
}

func (ws *WebServer) handleUpdateSettings(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "source is required"})
		return
	}
	if req.PreloadBatchSize < 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "preload_batch_size must be non-negative"})
		return
	}
	if req.AdvanceIntervalSeconds < 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "advance_interval_seconds must be non-negative"})
		return
	}
	if _, err := ws.newFetcher(req.Source); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid source: %v", err)})
		return
	}

	newSettings := &store.AppSettings{
		Source:                 req.Source,
		ShuffleEnabled:         req.ShuffleEnabled,
		PreloadBatchSize:       req.PreloadBatchSize,
		AdvanceIntervalSeconds: req.AdvanceIntervalSeconds,
	}
	if err := ws.db.UpsertAppSettings(newSettings); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to update settings: %v", err)})
		return
	}

	// After updating settings, rebuild the slideshow with the new configuration.
	if err := ws.Reload(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to rebuild slideshow: %v", err)})
		return
	}

	c.JSON(http.StatusOK, models.SettingsResponse(*newSettings))
}
