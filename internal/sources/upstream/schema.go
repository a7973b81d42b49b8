package upstream

// FileConfig is the top-level structure of the optional sources YAML file.
//
//	sources:
//	  nsfw_api:
//	    base_url: https://api.n-sfw.com/nsfw/
//	    categories: [neko, yuri]
//	  nekos_moe_api:
//	    disabled: true
type FileConfig struct {
	Sources map[string]SourceProps `yaml:"sources"`
}

// SourceProps overrides one source. Zero values keep the defaults.
type SourceProps struct {
	BaseURL    string   `yaml:"base_url,omitempty"`
	ImageURL   string   `yaml:"image_url,omitempty"`
	Categories []string `yaml:"categories,omitempty"`
	Disabled   bool     `yaml:"disabled,omitempty"`
}
