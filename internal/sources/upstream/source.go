// Package upstream maps the third-party random-image APIs onto domain.GalleryImage.
//
// Each API is one Source variant. A variant owns its endpoint template and its
// response decoder, so adding an upstream never touches the acquisition loop.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
	"github.com/MrSnakeDoc/nekogallery/internal/utils"
)

// maxResponseBytes caps how much of an upstream JSON body is read.
const maxResponseBytes = 1 << 20

var (
	// ErrStatus is returned when an upstream answers with a non-2xx status.
	ErrStatus = errors.New("upstream returned non-success status")
	// ErrNoImage is returned when a response decodes but carries no usable image URL.
	ErrNoImage = errors.New("upstream response has no image url")
)

// Source is one upstream variant.
type Source interface {
	// Name is the tag stamped on every image this source produces.
	Name() domain.APISource
	// Categories lists the stored-form categories a random pick may choose from.
	// Nil means the source takes no category.
	Categories() []string
	// Endpoint builds the request URL for a stored-form category ("" for none).
	Endpoint(category string) string
	// Decode maps a response body to a record. category is the stored form.
	Decode(body []byte, category string) (domain.GalleryImage, error)
}

// StatusError carries the upstream status code behind ErrStatus.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d", e.Endpoint, e.StatusCode)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Fetch performs one unauthenticated GET against src and decodes the result.
// No retry is attempted; timeouts come from client.
func Fetch(ctx context.Context, client *http.Client, src Source, category string) (domain.GalleryImage, error) {
	endpoint := src.Endpoint(category)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return domain.GalleryImage{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domain.GalleryImage{}, fmt.Errorf("failed to call %s: %w", src.Name(), err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.GalleryImage{}, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.GalleryImage{}, fmt.Errorf("failed to read %s response: %w", src.Name(), err)
	}

	img, err := src.Decode(body, category)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	if err := img.Validate(); err != nil {
		return domain.GalleryImage{}, fmt.Errorf("invalid %s image: %w", src.Name(), err)
	}
	return img, nil
}
