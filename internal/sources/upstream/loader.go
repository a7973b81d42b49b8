package upstream

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

// Loader reads the sources override file.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the YAML file.
func (l *Loader) Load() (FileConfig, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to read sources file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to parse sources yaml: %w", err)
	}

	for name := range cfg.Sources {
		if _, err := domain.ParseAPISource(name); err != nil {
			return FileConfig{}, fmt.Errorf("invalid sources file: %w", err)
		}
	}

	return cfg, nil
}

// BuildRegistry applies cfg on top of the default sources.
func BuildRegistry(cfg FileConfig) *Registry {
	props := func(s domain.APISource) SourceProps { return cfg.Sources[string(s)] }

	var sources []Source
	if p := props(domain.SourceNSFW); !p.Disabled {
		sources = append(sources, NewNSFW(p.BaseURL, p.Categories))
	}
	if p := props(domain.SourceWaifuPics); !p.Disabled {
		sources = append(sources, NewWaifuPics(p.BaseURL, p.Categories))
	}
	if p := props(domain.SourceNekosMoe); !p.Disabled {
		sources = append(sources, NewNekosMoe(p.BaseURL, p.ImageURL))
	}
	return NewRegistry(sources...)
}

// LoadRegistry returns the default registry when filePath is empty,
// otherwise the registry described by the file.
func LoadRegistry(filePath string) (*Registry, error) {
	if filePath == "" {
		return DefaultRegistry(), nil
	}
	cfg, err := NewLoader(filePath).Load()
	if err != nil {
		return nil, err
	}
	return BuildRegistry(cfg), nil
}
