// Package models tracks all api models for request and responses
package models

import (
	"fmt"

	"github.com/aouyang1/digitalgarden/gallery"
	"github.com/aouyang1/digitalgarden/slideshow"
	"github.com/aouyang1/digitalgarden/store"
)

const PlaceholderPath = "/static/images/placeholder.svg"

type SlideshowResponse struct {
	State          string `json:"state"`
	Position       int    `json:"position"`
	Total          int    `json:"total"`
	Token          uint64 `json:"token"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	ImagePath      string `json:"image_path"`
	BackgroundPath string `json:"background_path"`
	Loading        bool   `json:"loading"`
	Visible        bool   `json:"visible"`
	Placeholder    bool   `json:"placeholder"`
	Error          string `json:"error,omitempty"`
}

// NewSlideshowResponse converts a controller view into its wire form. Image paths point
// at the server's image endpoint and carry the image key, so a cached response is never
// reused for a different image at the same position.
func NewSlideshowResponse(v slideshow.View) SlideshowResponse {
	resp := SlideshowResponse{
		State:       v.State.String(),
		Position:    v.Position,
		Total:       v.Total,
		Token:       v.Token,
		Name:        v.Image.Name,
		URL:         v.Image.URL,
		Loading:     v.Loading,
		Visible:     v.Visible,
		Placeholder: v.Placeholder,
	}
	if v.State == slideshow.StateEmpty {
		resp.Position = 0
		return resp
	}

	switch {
	case v.Placeholder:
		resp.ImagePath = PlaceholderPath
	case v.Visible:
		resp.ImagePath = ImagePath(v.Position, v.Image)
	}
	if v.Background != "" {
		resp.BackgroundPath = resp.ImagePath
	}
	if v.Err != nil {
		resp.Error = v.Err.Error()
	}
	return resp
}

// ImagePath is the image endpoint path for img at position.
func ImagePath(position int, img gallery.Image) string {
	return fmt.Sprintf("/slideshow/image/%d?id=%s", position, img.Key())
}

type SettingsResponse = store.AppSettings

type UpdateSettingsRequest struct {
	Source                 string `json:"source"`
	ShuffleEnabled         bool   `json:"shuffle_enabled"`
	PreloadBatchSize       int    `json:"preload_batch_size"`
	AdvanceIntervalSeconds int    `json:"advance_interval_seconds"`
}

type ReloadResponse struct {
	Total   int    `json:"total"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
