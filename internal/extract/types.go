// Package extract derives structured page facts from raw or rendered HTML:
// main text content, outbound same-domain links, style declarations, and
// navigation menu structure.
package extract

// StyleSet holds the style facts observed on a page, one sorted set per
// category.
type StyleSet struct {
	Fonts     []string `json:"fonts"`
	TextSizes []string `json:"text_sizes"`
	Colors    []string `json:"colors"`
}

// MenuItem is one anchor inside a navigation container.
type MenuItem struct {
	Text  string `json:"text"`
	Href  string `json:"href"`
	Class string `json:"class"`
}

// Menu is the ordered anchor list of one navigation container. A page can
// carry several (header, footer, sidebar).
type Menu []MenuItem

// Result is everything the extractor derives from one page.
type Result struct {
	Text  string
	Links []string
	Style StyleSet
	Menus []Menu
}
