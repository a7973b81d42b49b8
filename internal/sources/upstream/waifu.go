package upstream

import (
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

const DefaultWaifuBaseURL = "https://api.waifu.pics/nsfw/"

type waifuResponse struct {
	URL string `json:"url"`
}

// WaifuPics stores its categories with the waifu_ prefix and strips it on the wire.
type WaifuPics struct {
	baseURL    string
	categories []string // stored form
}

func NewWaifuPics(baseURL string, categories []string) *WaifuPics {
	if baseURL == "" {
		baseURL = DefaultWaifuBaseURL
	}
	if len(categories) == 0 {
		categories = domain.WaifuCategories()
	}
	stored := make([]string, 0, len(categories))
	for _, c := range categories {
		stored = append(stored, domain.WaifuCategory(c))
	}
	return &WaifuPics{baseURL: baseURL, categories: stored}
}

func (s *WaifuPics) Name() domain.APISource { return domain.SourceWaifuPics }

func (s *WaifuPics) Categories() []string { return s.categories }

func (s *WaifuPics) Endpoint(category string) string {
	return s.baseURL + domain.UpstreamCategory(category)
}

func (s *WaifuPics) Decode(body []byte, category string) (domain.GalleryImage, error) {
	var payload waifuResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.GalleryImage{}, fmt.Errorf("failed to decode waifu_pics_api response: %w", err)
	}
	if payload.URL == "" {
		return domain.GalleryImage{}, ErrNoImage
	}
	if category != "" {
		category = domain.WaifuCategory(category)
	}
	return domain.NewGalleryImage(payload.URL, domain.SourceWaifuPics, category), nil
}
