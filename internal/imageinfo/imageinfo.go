// Package imageinfo learns an image's pixel size by reading only its header.
package imageinfo

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/nekogallery/internal/utils"
)

// ErrUndecodable is returned when neither the header nor the Content-Type
// identifies the image.
var ErrUndecodable = errors.New("image format not recognized")

// Info is what an inspection learned. Width and Height are zero when only the
// format could be determined.
type Info struct {
	Width  int
	Height int
	Format string
}

// Inspector fetches images and decodes their config.
type Inspector struct {
	client *http.Client
}

// NewInspector uses client, or a 30s-timeout client when nil.
func NewInspector(client *http.Client) *Inspector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Inspector{client: client}
}

func (p *Inspector) Inspect(ctx context.Context, url string) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Info{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	cfg, format, err := image.DecodeConfig(resp.Body)
	if err != nil {
		format = formatFromContentType(resp.Header.Get("Content-Type"))
		if format == "" {
			return Info{}, fmt.Errorf("%w: %w", ErrUndecodable, err)
		}
		return Info{Format: format}, nil
	}

	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

func formatFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "jpeg"
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "gif"):
		return "gif"
	case strings.Contains(ct, "webp"):
		return "webp"
	default:
		return ""
	}
}
