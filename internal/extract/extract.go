package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// assetExtensions are path suffixes that denote static assets rather than
// crawlable pages.
var assetExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".ico": {}, ".css": {}, ".js": {}, ".json": {}, ".xml": {}, ".pdf": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".webm": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
}

// authFlowFragments mark stateful e-commerce and session flows. Crawling
// into them either loops forever (carts mint fresh session URLs) or trips
// bot defenses, so links containing them are dropped at extraction time.
var authFlowFragments = []string{
	"cart", "checkout", "login", "logout", "signin", "sign-in",
	"signup", "sign-up", "register", "account", "password",
	"wishlist", "session", "admin",
}

// Normalizer canonicalizes discovered link URLs. Wired to the crawler's
// normalizer so visited-set identity and link-set arithmetic agree.
type Normalizer func(raw string) (string, error)

// Extractor parses HTML into the structured facts the change detector
// compares.
type Extractor struct {
	normalize Normalizer
}

// NewExtractor constructs an Extractor using the given URL normalizer.
func NewExtractor(normalize Normalizer) *Extractor {
	return &Extractor{normalize: normalize}
}

// Extract derives text, links, styles, and menu structure from the page.
// pageURL anchors relative href resolution; baseURL scopes the same-domain
// link filter.
func (e *Extractor) Extract(html []byte, pageURL string, baseURL string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	return Result{
		Text:  extractText(doc),
		Links: e.extractLinks(doc, pageURL, baseURL),
		Style: extractStyles(doc),
		Menus: extractMenus(doc),
	}, nil
}

// extractText prefers a main-content extraction that drops navigation and
// boilerplate; when that yields nothing it falls back to concatenating
// headings and paragraphs. Strategies are tried in order, first non-empty
// result wins.
func extractText(doc *goquery.Document) string {
	for _, strategy := range []func(*goquery.Document) string{
		mainContentText,
		headingParagraphText,
	} {
		if text := strategy(doc); text != "" {
			return text
		}
	}
	return ""
}

func mainContentText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	if body.Length() == 0 {
		return ""
	}
	body.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	// Prefer an explicit main-content container when the page has one.
	scope := body
	for _, sel := range []string{"main", "article", "[role='main']", "#content", ".content"} {
		if found := body.Find(sel); found.Length() > 0 {
			scope = found.First()
			break
		}
	}
	return collapseWhitespace(scope.Text())
}

func headingParagraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("h1, h2, h3, h4, h5, h6, p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

func (e *Extractor) extractLinks(doc *goquery.Document, pageURL, baseURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		rel, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(rel)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		normalized, err := e.normalize(resolved.String())
		if err != nil {
			return
		}
		if !sameDomain(baseURL, normalized) {
			return
		}
		if isAsset(normalized) || isAuthFlow(normalized) {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})
	sort.Strings(links)
	return links
}

func sameDomain(baseURL, candidate string) bool {
	bu, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	cu, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	bh := strings.TrimPrefix(strings.ToLower(bu.Hostname()), "www.")
	ch := strings.TrimPrefix(strings.ToLower(cu.Hostname()), "www.")
	return bh != "" && (ch == "" || ch == bh)
}

func isAsset(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	_, ok := assetExtensions[ext]
	return ok
}

func isAuthFlow(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, fragment := range authFlowFragments {
		if strings.Contains(p, fragment) {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
