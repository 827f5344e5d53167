// Package detect holds the change detection state machine: it keeps the
// last-seen snapshot per monitored target and diffs new snapshots against it
// across independent dimensions (text, links, pages, styles, menus, visual).
package detect

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags a detected change.
type Kind string

// Change kinds. site_check is a heartbeat, not a diff: it records that a
// check ran and which pages were seen.
const (
	KindTextChange       Kind = "text_change"
	KindLinksAdded       Kind = "links_added"
	KindLinksRemoved     Kind = "links_removed"
	KindPageAdded        Kind = "page_added"
	KindPageRemoved      Kind = "page_removed"
	KindFontsAdded       Kind = "fonts_added"
	KindFontsRemoved     Kind = "fonts_removed"
	KindTextSizesAdded   Kind = "text_sizes_added"
	KindTextSizesRemoved Kind = "text_sizes_removed"
	KindColorsAdded      Kind = "colors_added"
	KindColorsRemoved    Kind = "colors_removed"
	KindMenuStructure    Kind = "menu_structure_change"
	KindVisualChange     Kind = "visual_change"
	KindSiteCheck        Kind = "site_check"
)

// Analysis is the structured rationale attached by the scorer.
type Analysis struct {
	Explanation       string `json:"explanation"`
	ImpactCategory    string `json:"impact_category"`
	BusinessRelevance string `json:"business_relevance"`
	Recommendations   string `json:"recommendations"`
}

// PageRef identifies one page inside a site_check record.
type PageRef struct {
	URL      string `json:"url"`
	Location string `json:"location"`
}

// Change is one detected difference between two snapshots of a target.
// Changes are immutable once scored.
type Change struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	TargetURL string    `json:"target_url"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`

	// Diff payload, rendered per kind: raw text for text changes,
	// newline-joined sorted sets for link and style changes.
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`

	// Visual payload (visual_change only): PNG-encoded raster data.
	BeforeImage []byte `json:"before_image,omitempty"`
	AfterImage  []byte `json:"after_image,omitempty"`
	DiffImage   []byte `json:"diff_image,omitempty"`

	// Heartbeat payload (site_check only).
	Pages []PageRef `json:"pages,omitempty"`

	SignificanceScore int       `json:"significance_score,omitempty"`
	Analysis          *Analysis `json:"analysis,omitempty"`
}

// Description renders the change for the external classifier.
func (c Change) Description() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Change Type: %s\n", c.Kind)
	fmt.Fprintf(&b, "Location: %s\n", c.Location)
	if c.Before != "" {
		fmt.Fprintf(&b, "Previous Content:\n%s\n", excerpt(c.Before, 1000))
	}
	if c.After != "" {
		fmt.Fprintf(&b, "New Content:\n%s\n", excerpt(c.After, 1000))
	}
	return b.String()
}

func excerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
