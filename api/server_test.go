package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aouyang1/digitalgarden/api/models"
	"github.com/aouyang1/digitalgarden/gallery"
	"github.com/aouyang1/digitalgarden/preload"
	"github.com/aouyang1/digitalgarden/source"
	"github.com/aouyang1/digitalgarden/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeFetcher struct {
	mu      sync.Mutex
	entries []source.Entry
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]source.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, f.err
}

func (f *fakeFetcher) set(entries []source.Entry, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
	f.err = err
}

type mapGetter map[string][]byte

func (m mapGetter) Get(ctx context.Context, url string) ([]byte, error) {
	data, ok := m[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

var scenarioEntries = []source.Entry{
	{Name: "a.png", DownloadURL: "u1"},
	{Name: "b.txt", DownloadURL: "u2"},
	{Name: "c_d.jpg", DownloadURL: "u3"},
}

type testServer struct {
	ws      *WebServer
	db      *store.Database
	fetcher *fakeFetcher
}

func newTestServer(t *testing.T, getter mapGetter) *testServer {
	t.Helper()

	db, err := store.NewDatabase(filepath.Join(t.TempDir(), "garden.db"), store.AppSettings{
		Source:           "fake://gallery",
		PreloadBatchSize: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p, err := preload.New(getter, 16, time.Second)
	require.NoError(t, err)

	fetcher := &fakeFetcher{entries: scenarioEntries}
	ws, err := NewWebServer(Options{
		DB:        db,
		Preloader: p,
		NewFetcher: func(src string) (source.Fetcher, error) {
			if strings.HasPrefix(src, "bad") {
				return nil, errors.New("unsupported source")
			}
			return fetcher, nil
		},
		RenderTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if show := ws.controller(); show != nil {
			show.Close()
		}
	})

	return &testServer{ws: ws, db: db, fetcher: fetcher}
}

func (ts *testServer) do(t *testing.T, method, path string, body string, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	ts.ws.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) view(t *testing.T, rr *httptest.ResponseRecorder) models.SlideshowResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp models.SlideshowResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func (ts *testServer) settledView(t *testing.T) models.SlideshowResponse {
	t.Helper()
	ts.ws.controller().Wait()
	return ts.view(t, ts.do(t, "GET", "/slideshow", "", false))
}

func TestSlideshow_NotInitialized(t *testing.T) {
	ts := newTestServer(t, mapGetter{})

	rr := ts.do(t, "GET", "/slideshow", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = ts.do(t, "POST", "/slideshow/next", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = ts.do(t, "GET", "/slideshow", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "slideshow is not initialized")
}

func TestSlideshow_Scenario(t *testing.T) {
	img := tinyPNG(t)
	ts := newTestServer(t, mapGetter{"u1": img, "u3": img})
	require.NoError(t, ts.ws.Reload(context.Background()))

	resp := ts.settledView(t)
	assert.Equal(t, "shown", resp.State)
	assert.Equal(t, "u1", resp.URL)
	assert.Equal(t, "a", resp.Name)
	assert.Equal(t, 2, resp.Total)

	resp = ts.view(t, ts.do(t, "POST", "/slideshow/next", "", false))
	assert.Equal(t, 1, resp.Position)
	resp = ts.settledView(t)
	assert.Equal(t, "u3", resp.URL)
	assert.Equal(t, "c d", resp.Name)

	ts.do(t, "POST", "/slideshow/next", "", false)
	resp = ts.settledView(t)
	assert.Equal(t, "u1", resp.URL)

	ts.do(t, "POST", "/slideshow/previous", "", false)
	resp = ts.settledView(t)
	assert.Equal(t, "u3", resp.URL)
}

func TestSlideshow_HTMXFragment(t *testing.T) {
	img := tinyPNG(t)
	ts := newTestServer(t, mapGetter{"u1": img, "u3": img})
	require.NoError(t, ts.ws.Reload(context.Background()))
	ts.ws.controller().Wait()

	rr := ts.do(t, "GET", "/slideshow", "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `<h2 id="image-title">a</h2>`)
	assert.Contains(t, rr.Body.String(), `src="`+models.ImagePath(0, gallery.Image{URL: "u1"})+`"`)
}

func TestSlideshow_ImageEndpoint(t *testing.T) {
	img := tinyPNG(t)
	ts := newTestServer(t, mapGetter{"u1": img, "u3": img})
	require.NoError(t, ts.ws.Reload(context.Background()))

	rr := ts.do(t, "GET", "/slideshow/image/1", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=60", rr.Header().Get("Cache-Control"))
	assert.Equal(t, img, rr.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", "/slideshow/image/9", "", false).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "GET", "/slideshow/image/x", "", false).Code)
}

func TestSlideshow_ImagePathChangesAcrossReload(t *testing.T) {
	img := tinyPNG(t)
	ts := newTestServer(t, mapGetter{"u1": img, "u3": img})
	require.NoError(t, ts.ws.Reload(context.Background()))

	before := ts.settledView(t)
	assert.Equal(t, "u1", before.URL)
	assert.Equal(t, http.StatusOK, ts.do(t, "GET", before.ImagePath, "", false).Code)

	// same position, different image after the rebuild
	ts.fetcher.set([]source.Entry{
		{Name: "c_d.jpg", DownloadURL: "u3"},
		{Name: "a.png", DownloadURL: "u1"},
	}, nil)
	require.NoError(t, ts.ws.Reload(context.Background()))

	after := ts.settledView(t)
	assert.Equal(t, "u3", after.URL)
	assert.Equal(t, 0, after.Position)
	assert.NotEqual(t, before.ImagePath, after.ImagePath)

	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", before.ImagePath, "", false).Code)
	rr := ts.do(t, "GET", after.ImagePath, "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, img, rr.Body.Bytes())
}

func TestSlideshow_FailedImageShowsPlaceholder(t *testing.T) {
	ts := newTestServer(t, mapGetter{"u3": tinyPNG(t)})
	require.NoError(t, ts.ws.Reload(context.Background()))

	resp := ts.settledView(t)
	assert.Equal(t, "failed", resp.State)
	assert.False(t, resp.Loading)
	assert.True(t, resp.Placeholder)
	assert.Equal(t, models.PlaceholderPath, resp.ImagePath)

	assert.Equal(t, http.StatusBadGateway, ts.do(t, "GET", "/slideshow/image/0", "", false).Code)
}

func TestSlideshow_EmptyListing(t *testing.T) {
	ts := newTestServer(t, mapGetter{})
	ts.fetcher.set([]source.Entry{{Name: "notes.md", DownloadURL: "u"}}, nil)
	require.NoError(t, ts.ws.Reload(context.Background()))

	resp := ts.view(t, ts.do(t, "POST", "/slideshow/next", "", false))
	assert.Equal(t, "empty", resp.State)
	resp = ts.view(t, ts.do(t, "POST", "/slideshow/previous", "", false))
	assert.Equal(t, "empty", resp.State)

	rr := ts.do(t, "GET", "/slideshow", "", true)
	assert.Contains(t, rr.Body.String(), "No images to show")
}

func TestReload_FetchFailureKeepsPreviousSlideshow(t *testing.T) {
	img := tinyPNG(t)
	ts := newTestServer(t, mapGetter{"u1": img, "u3": img})
	require.NoError(t, ts.ws.Reload(context.Background()))

	ts.fetcher.set(nil, errors.New("offline"))
	rr := ts.do(t, "POST", "/slideshow/reload", "", false)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "offline")

	resp := ts.settledView(t)
	assert.Equal(t, 2, resp.Total)
}

func TestReload_PicksUpNewListing(t *testing.T) {
	img := tinyPNG(t)
	ts := newTestServer(t, mapGetter{"u1": img, "u3": img, "u4": img})
	require.NoError(t, ts.ws.Reload(context.Background()))

	ts.fetcher.set(append(scenarioEntries, source.Entry{Name: "e.gif", DownloadURL: "u4"}), nil)
	rr := ts.do(t, "POST", "/slideshow/reload", "", false)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp models.ReloadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
}

func TestSettings_GetAndUpdate(t *testing.T) {
	img := tinyPNG(t)
	ts := newTestServer(t, mapGetter{"u1": img, "u3": img})

	rr := ts.do(t, "GET", "/settings", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	var settings models.SettingsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &settings))
	assert.Equal(t, "fake://gallery", settings.Source)
	assert.Equal(t, 5, settings.PreloadBatchSize)

	rr = ts.do(t, "PUT", "/settings", `{"source":"fake://other","shuffle_enabled":true,"preload_batch_size":1,"advance_interval_seconds":30}`, false)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	stored, err := ts.db.GetAppSettings()
	require.NoError(t, err)
	assert.Equal(t, store.AppSettings{
		Source:                 "fake://other",
		ShuffleEnabled:         true,
		PreloadBatchSize:       1,
		AdvanceIntervalSeconds: 30,
	}, *stored)

	// settings update rebuilt the slideshow
	require.NotNil(t, ts.ws.controller())
	assert.Equal(t, 2, ts.ws.controller().Len())
}

func TestSettings_UpdateValidation(t *testing.T) {
	ts := newTestServer(t, mapGetter{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"source":`},
		{"missing source", `{"source":"  ","preload_batch_size":1}`},
		{"negative batch", `{"source":"fake://x","preload_batch_size":-1}`},
		{"negative interval", `{"source":"fake://x","advance_interval_seconds":-5}`},
		{"unsupported source", `{"source":"bad://x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, "PUT", "/settings", tt.body, false)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestStaticRoutes(t *testing.T) {
	ts := newTestServer(t, mapGetter{})

	rr := ts.do(t, "GET", "/", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `hx-get="/slideshow"`)

	rr = ts.do(t, "GET", "/health", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = ts.do(t, "GET", "/favicon.ico", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))

	rr = ts.do(t, "GET", "/static/css/slideshow.css", "", false)
	assert.Equal(t, http.StatusOK, rr.Code)
}
