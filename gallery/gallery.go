// Package gallery turns raw listing entries into the ordered image collection shown by the slideshow
package gallery

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/aouyang1/digitalgarden/source"
	"github.com/aouyang1/digitalgarden/util"
	mapset "github.com/deckarep/golang-set/v2"
)

// Image is one slideshow entry.
type Image struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Key is a short stable identifier derived from the image URL. It changes whenever the
// image behind a position changes, so it is safe to use in cacheable paths.
func (i Image) Key() string {
	h := fnv.New64a()
	h.Write([]byte(i.URL))
	return strconv.FormatUint(h.Sum64(), 36)
}

// Filter keeps the entries whose name carries a supported image extension and derives
// their display names. Listing order is preserved and duplicate URLs keep the first entry.
func Filter(entries []source.Entry) []Image {
	seen := mapset.NewThreadUnsafeSet[string]()
	images := make([]Image, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == "dir" || entry.DownloadURL == "" {
			continue
		}
		if !util.IsImageName(entry.Name) {
			continue
		}
		if !seen.Add(entry.DownloadURL) {
			continue
		}
		images = append(images, Image{
			URL:  entry.DownloadURL,
			Name: DisplayName(entry.Name),
		})
	}
	return images
}

// DisplayName returns the part of filename before the first "." with its first "_"
// replaced by a space. Later underscores are kept: "a_b_c.jpg" becomes "a b_c".
func DisplayName(filename string) string {
	base, _, _ := strings.Cut(filename, ".")
	return strings.Replace(base, "_", " ", 1)
}

// URLs returns the image URLs in collection order.
func URLs(images []Image) []string {
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.URL
	}
	return urls
}
