package upstream

import (
	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

// Registry holds the enabled sources keyed by tag, in a stable order.
type Registry struct {
	sources map[domain.APISource]Source
	order   []domain.APISource
}

// NewRegistry registers sources in the given order. A later source with the
// same tag replaces the earlier one.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[domain.APISource]Source, len(sources))}
	for _, s := range sources {
		if _, exists := r.sources[s.Name()]; !exists {
			r.order = append(r.order, s.Name())
		}
		r.sources[s.Name()] = s
	}
	return r
}

// DefaultRegistry wires the three public upstreams with their stock endpoints.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewNSFW("", nil),
		NewWaifuPics("", nil),
		NewNekosMoe("", ""),
	)
}

// Get returns the source for a tag.
func (r *Registry) Get(name domain.APISource) (Source, bool) {
	s, ok := r.sources[name]
	return s, ok
}

// Sources returns the enabled sources in registration order.
func (r *Registry) Sources() []Source {
	out := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}

// Len returns the number of enabled sources.
func (r *Registry) Len() int { return len(r.order) }
