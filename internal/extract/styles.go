package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	fontFamilyRe = regexp.MustCompile(`(?i)font-family\s*:\s*([^;}{"]+)`)
	fontSizeRe   = regexp.MustCompile(`(?i)font-size\s*:\s*([^;}{\s"]+)`)
	// The leading boundary keeps background-color and border-color out.
	colorRe = regexp.MustCompile(`(?i)(?:^|[;{\s"'])color\s*:\s*([^;}{"]+)`)
)

// extractStyles collects font, size, and color declarations from inline
// style attributes and <style> blocks. Each category is a sorted set so
// snapshots compare deterministically.
func extractStyles(doc *goquery.Document) StyleSet {
	var css strings.Builder
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		css.WriteString(s.Text())
		css.WriteString("\n")
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if attr, ok := s.Attr("style"); ok {
			// Wrap so the color regex boundary matches at declaration start.
			css.WriteString(";" + attr + ";\n")
		}
	})

	blob := css.String()
	return StyleSet{
		Fonts:     matchSet(fontFamilyRe, blob),
		TextSizes: matchSet(fontSizeRe, blob),
		Colors:    matchSet(colorRe, blob),
	}
}

func matchSet(re *regexp.Regexp, blob string) []string {
	seen := make(map[string]struct{})
	for _, m := range re.FindAllStringSubmatch(blob, -1) {
		v := strings.TrimSpace(m[1])
		if v == "" {
			continue
		}
		seen[strings.ToLower(v)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// extractMenus collects the anchors of each navigation container, in
// document order. A page can yield several menus (header, footer).
func extractMenus(doc *goquery.Document) []Menu {
	var menus []Menu
	doc.Find("nav, [role='navigation']").Each(func(_ int, container *goquery.Selection) {
		var menu Menu
		container.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			class, _ := a.Attr("class")
			text := strings.TrimSpace(a.Text())
			if text == "" && href == "" {
				return
			}
			menu = append(menu, MenuItem{Text: text, Href: href, Class: class})
		})
		if len(menu) > 0 {
			menus = append(menus, menu)
		}
	})
	return menus
}
