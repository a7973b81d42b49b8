package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// APISource tags the upstream that produced an image.
type APISource string

const (
	SourceNSFW      APISource = "nsfw_api"
	SourceWaifuPics APISource = "waifu_pics_api"
	SourceNekosMoe  APISource = "nekos_moe_api"
)

// WaifuPrefix marks waifu.pics categories in their stored form.
const WaifuPrefix = "waifu_"

var (
	ErrEmptyURL      = errors.New("image url is empty")
	ErrUnknownSource = errors.New("unknown api source")
	ErrWaifuNoPrefix = errors.New("waifu_pics_api category must carry the waifu_ prefix")
	ErrBadDimensions = errors.New("image dimensions must not be negative")
)

var allSourcesOrdered = []APISource{SourceNSFW, SourceWaifuPics, SourceNekosMoe}

// AllSources returns the known upstream tags in a stable order.
func AllSources() []APISource {
	out := make([]APISource, len(allSourcesOrdered))
	copy(out, allSourcesOrdered)
	return out
}

// Valid reports whether s is one of the known upstream tags.
func (s APISource) Valid() bool {
	switch s {
	case SourceNSFW, SourceWaifuPics, SourceNekosMoe:
		return true
	}
	return false
}

// ParseAPISource maps a raw tag to an APISource.
func ParseAPISource(raw string) (APISource, error) {
	s := APISource(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, raw)
	}
	return s, nil
}

// GalleryImage is the normalized record every upstream response is mapped into.
//
// URL is the identity key: history and the catalogue both dedup on it.
// Width and Height are 0 when the upstream does not report them.
type GalleryImage struct {
	URL       string    `json:"url"`
	APISource APISource `json:"apiSource"`
	Category  *string   `json:"category"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
}

// NewGalleryImage builds a record, leaving Category nil when category is empty.
func NewGalleryImage(url string, source APISource, category string) GalleryImage {
	img := GalleryImage{URL: url, APISource: source}
	if category != "" {
		c := category
		img.Category = &c
	}
	return img
}

// CategoryName returns the category or "" when absent.
func (g GalleryImage) CategoryName() string {
	if g.Category == nil {
		return ""
	}
	return *g.Category
}

// Validate checks the record invariants.
func (g GalleryImage) Validate() error {
	if strings.TrimSpace(g.URL) == "" {
		return ErrEmptyURL
	}
	if !g.APISource.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSource, g.APISource)
	}
	if g.APISource == SourceWaifuPics && g.Category != nil && !strings.HasPrefix(*g.Category, WaifuPrefix) {
		return fmt.Errorf("%w: %q", ErrWaifuNoPrefix, *g.Category)
	}
	if g.Width < 0 || g.Height < 0 {
		return ErrBadDimensions
	}
	return nil
}

// HistoryItem is a viewed image stamped with the moment it was recorded.
type HistoryItem struct {
	GalleryImage
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// ViewedAt converts Timestamp back to a time.Time.
func (h HistoryItem) ViewedAt() time.Time {
	return time.UnixMilli(h.Timestamp)
}

// WaifuCategory returns the stored form of a waifu.pics category.
// Example: "neko" -> "waifu_neko"
func WaifuCategory(name string) string {
	if strings.HasPrefix(name, WaifuPrefix) {
		return name
	}
	return WaifuPrefix + name
}

// UpstreamCategory strips the waifu_ prefix for the outbound request path.
// Example: "waifu_neko" -> "neko"
func UpstreamCategory(stored string) string {
	return strings.TrimPrefix(stored, WaifuPrefix)
}
