package upstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

const (
	DefaultNekosMoeEndpoint = "https://nekos.moe/api/v1/random/image"
	// DefaultNekosMoeImageURL receives the image id.
	DefaultNekosMoeImageURL = "https://nekos.moe/image/%s.jpg"
)

type nekosMoeResponse struct {
	Images []struct {
		ID string `json:"id"`
	} `json:"images"`
}

// NekosMoe returns an image id that must be turned into a resource URL.
// It has no category.
type NekosMoe struct {
	endpoint string
	imageURL string
}

func NewNekosMoe(endpoint, imageURL string) *NekosMoe {
	if endpoint == "" {
		endpoint = DefaultNekosMoeEndpoint
	}
	if imageURL == "" || !strings.Contains(imageURL, "%s") {
		imageURL = DefaultNekosMoeImageURL
	}
	return &NekosMoe{endpoint: endpoint, imageURL: imageURL}
}

func (s *NekosMoe) Name() domain.APISource { return domain.SourceNekosMoe }

func (s *NekosMoe) Categories() []string { return nil }

func (s *NekosMoe) Endpoint(string) string { return s.endpoint }

func (s *NekosMoe) Decode(body []byte, _ string) (domain.GalleryImage, error) {
	var payload nekosMoeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.GalleryImage{}, fmt.Errorf("failed to decode nekos_moe_api response: %w", err)
	}
	if len(payload.Images) == 0 || payload.Images[0].ID == "" {
		return domain.GalleryImage{}, ErrNoImage
	}
	url := fmt.Sprintf(s.imageURL, payload.Images[0].ID)
	return domain.NewGalleryImage(url, domain.SourceNekosMoe, ""), nil
}
