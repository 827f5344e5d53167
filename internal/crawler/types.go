// Package crawler implements URL-scoped crawling with link discovery,
// revisit avoidance, and page caps. A crawl produces a Snapshot: the full
// observed state of a monitored target at one point in time.
package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sitewatch/sitewatch/internal/extract"
)

// PageRecord captures one crawled page. Records are created fresh each crawl
// and never mutated; the next crawl supersedes them wholesale.
type PageRecord struct {
	URL           string          `json:"url"`
	Location      string          `json:"location"`
	TextContent   string          `json:"text_content"`
	Links         []string        `json:"links"`
	Styles        extract.StyleSet `json:"styles"`
	MenuStructure []extract.Menu  `json:"menu_structure"`
	ScreenshotRef string          `json:"screenshot_ref,omitempty"`
}

// Snapshot is the complete observed state of a target at one crawl. The
// root-page convenience fields mirror Pages[0] for single-page consumers.
type Snapshot struct {
	TargetURL string       `json:"target_url"`
	Timestamp time.Time    `json:"timestamp"`
	Pages     []PageRecord `json:"pages"`

	TextContent   string           `json:"text_content"`
	Links         []string         `json:"links"`
	ContentHash   string           `json:"content_hash"`
	Styles        extract.StyleSet `json:"styles"`
	MenuStructure []extract.Menu   `json:"menu_structure"`
	ScreenshotRef string           `json:"screenshot_ref,omitempty"`
}

// Root returns the root PageRecord. A Snapshot always has at least one page.
func (s *Snapshot) Root() PageRecord {
	if len(s.Pages) == 0 {
		return PageRecord{}
	}
	return s.Pages[0]
}

// PageURLs returns the set of page URLs in the snapshot.
func (s *Snapshot) PageURLs() map[string]PageRecord {
	out := make(map[string]PageRecord, len(s.Pages))
	for _, p := range s.Pages {
		out[p.URL] = p
	}
	return out
}

// ContentFingerprint hashes canonicalized text plus the sorted link set.
// Equal fingerprints let the detector skip the expensive diff entirely.
func ContentFingerprint(text string, links []string) string {
	sorted := append([]string(nil), links...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(text)))
	h.Write([]byte{0})
	for _, l := range sorted {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Page is the raw result of fetching one URL, before extraction.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	UsedJS     bool
}

// LogEntry is one timestamped line of the crawl diagnostic log.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Result is what a crawl returns: the snapshot plus the ordered diagnostic
// log of every fetch, skip, and decision taken along the way.
type Result struct {
	Snapshot Snapshot
	Log      []LogEntry
}
