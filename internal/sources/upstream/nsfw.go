package upstream

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

// DefaultNSFWBaseURL is the category-browsing endpoint; the category is appended.
const DefaultNSFWBaseURL = "https://api.n-sfw.com/nsfw/"

type nsfwResponse struct {
	URLJapan string `json:"url_japan"`
}

// NSFW is the generic source and the only one that supports arbitrary category filters.
type NSFW struct {
	baseURL    string
	categories []string
}

func NewNSFW(baseURL string, categories []string) *NSFW {
	if baseURL == "" {
		baseURL = DefaultNSFWBaseURL
	}
	if len(categories) == 0 {
		categories = domain.NSFWCategories()
	}
	return &NSFW{baseURL: baseURL, categories: categories}
}

func (s *NSFW) Name() domain.APISource { return domain.SourceNSFW }

func (s *NSFW) Categories() []string { return s.categories }

// Endpoint appends category as a single path segment.
func (s *NSFW) Endpoint(category string) string { return s.baseURL + url.PathEscape(category) }

func (s *NSFW) Decode(body []byte, category string) (domain.GalleryImage, error) {
	var payload nsfwResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.GalleryImage{}, fmt.Errorf("failed to decode nsfw_api response: %w", err)
	}
	if payload.URLJapan == "" {
		return domain.GalleryImage{}, ErrNoImage
	}
	return domain.NewGalleryImage(payload.URLJapan, domain.SourceNSFW, category), nil
}
