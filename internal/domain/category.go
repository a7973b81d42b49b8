package domain

// Category is a browsable label and the upstream that serves it.
type Category struct {
	Name      string
	APISource APISource
	IsNSFW    bool
}

// Category lists as served by the upstreams' random-image endpoints.
var (
	waifuCategories = []string{"waifu", "neko", "blowjob"}

	nsfwCategories = []string{
		"anal", "ass", "blowjob", "breeding", "buttplug", "cages",
		"ecchi", "feet", "fo", "gif", "hentai", "legs",
		"masturbation", "milf", "neko", "paizuri", "petgirls",
		"pierced", "selfie", "smothering", "socks", "vagina", "yuri",
	}
)

// WaifuCategories returns the upstream (unprefixed) waifu.pics category names.
func WaifuCategories() []string { return append([]string(nil), waifuCategories...) }

// NSFWCategories returns the nsfw_api category names.
func NSFWCategories() []string { return append([]string(nil), nsfwCategories...) }

// DefaultCategories is the seed list for the persisted category table.
// Waifu entries are stored prefixed so "waifu_neko" and "neko" stay distinct.
func DefaultCategories() []Category {
	out := make([]Category, 0, len(waifuCategories)+len(nsfwCategories))
	for _, name := range waifuCategories {
		out = append(out, Category{Name: WaifuCategory(name), APISource: SourceWaifuPics, IsNSFW: true})
	}
	for _, name := range nsfwCategories {
		out = append(out, Category{Name: name, APISource: SourceNSFW, IsNSFW: true})
	}
	return out
}
