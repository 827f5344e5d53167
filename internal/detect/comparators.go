package detect

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/crawler"
	"github.com/sitewatch/sitewatch/internal/extract"
)

// textSimilarityThreshold is the ratio below which a paragraph pair counts
// as changed. Ratios at or above it are treated as whitespace or punctuation
// noise rather than real edits.
const textSimilarityThreshold = 0.95

var paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)

func (d *Detector) compareText(prev, curr crawler.Snapshot) []Change {
	oldParas := paragraphSplitRe.Split(prev.TextContent, -1)
	newParas := paragraphSplitRe.Split(curr.TextContent, -1)

	var changes []Change
	n := len(oldParas)
	if len(newParas) < n {
		n = len(newParas)
	}
	for i := 0; i < n; i++ {
		oldP, newP := oldParas[i], newParas[i]
		if oldP == newP {
			continue
		}
		if similarity(oldP, newP) < textSimilarityThreshold {
			changes = append(changes, d.newChange(
				KindTextChange, curr.TargetURL,
				fmt.Sprintf("Paragraph %d", i+1), oldP, newP))
		}
	}
	// Surplus paragraphs on either side are whole additions or removals.
	for i := n; i < len(newParas); i++ {
		if strings.TrimSpace(newParas[i]) == "" {
			continue
		}
		changes = append(changes, d.newChange(
			KindTextChange, curr.TargetURL,
			fmt.Sprintf("Paragraph %d", i+1), "", newParas[i]))
	}
	for i := n; i < len(oldParas); i++ {
		if strings.TrimSpace(oldParas[i]) == "" {
			continue
		}
		changes = append(changes, d.newChange(
			KindTextChange, curr.TargetURL,
			fmt.Sprintf("Paragraph %d", i+1), oldParas[i], ""))
	}
	return changes
}

// similarity is a character-level sequence match ratio in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

func (d *Detector) compareLinks(prev, curr crawler.Snapshot) []Change {
	added := setDifference(curr.Links, prev.Links)
	removed := setDifference(prev.Links, curr.Links)

	var changes []Change
	if len(added) > 0 {
		changes = append(changes, d.newChange(
			KindLinksAdded, curr.TargetURL, "Links", "", strings.Join(added, "\n")))
	}
	if len(removed) > 0 {
		changes = append(changes, d.newChange(
			KindLinksRemoved, curr.TargetURL, "Links", strings.Join(removed, "\n"), ""))
	}
	return changes
}

func (d *Detector) comparePages(prev, curr crawler.Snapshot) []Change {
	prevPages := prev.PageURLs()
	currPages := curr.PageURLs()

	var changes []Change
	for url, page := range currPages {
		if _, ok := prevPages[url]; !ok {
			changes = append(changes, d.newChange(
				KindPageAdded, curr.TargetURL, page.Location, "", url))
		}
	}
	for url, page := range prevPages {
		if _, ok := currPages[url]; !ok {
			changes = append(changes, d.newChange(
				KindPageRemoved, curr.TargetURL, page.Location, url, ""))
		}
	}
	// Map iteration order is random; keep output deterministic.
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Kind != changes[j].Kind {
			return changes[i].Kind < changes[j].Kind
		}
		return changes[i].Location < changes[j].Location
	})
	return changes
}

func (d *Detector) compareStyles(prev, curr crawler.Snapshot) []Change {
	categories := []struct {
		addKind, removeKind Kind
		location            string
		prev, curr          []string
	}{
		{KindFontsAdded, KindFontsRemoved, "Fonts", prev.Styles.Fonts, curr.Styles.Fonts},
		{KindTextSizesAdded, KindTextSizesRemoved, "Text sizes", prev.Styles.TextSizes, curr.Styles.TextSizes},
		{KindColorsAdded, KindColorsRemoved, "Colors", prev.Styles.Colors, curr.Styles.Colors},
	}

	var changes []Change
	for _, cat := range categories {
		if added := setDifference(cat.curr, cat.prev); len(added) > 0 {
			changes = append(changes, d.newChange(
				cat.addKind, curr.TargetURL, cat.location, "", strings.Join(added, "\n")))
		}
		if removed := setDifference(cat.prev, cat.curr); len(removed) > 0 {
			changes = append(changes, d.newChange(
				cat.removeKind, curr.TargetURL, cat.location, strings.Join(removed, "\n"), ""))
		}
	}
	return changes
}

// compareMenus compares the first menu of each snapshot structurally. Order
// and content both matter: a reordered navigation is a change.
func (d *Detector) compareMenus(prev, curr crawler.Snapshot) []Change {
	if len(prev.MenuStructure) == 0 && len(curr.MenuStructure) == 0 {
		return nil
	}
	var prevMenu, currMenu extract.Menu
	if len(prev.MenuStructure) > 0 {
		prevMenu = prev.MenuStructure[0]
	}
	if len(curr.MenuStructure) > 0 {
		currMenu = curr.MenuStructure[0]
	}
	if menusEqual(prevMenu, currMenu) {
		return nil
	}
	return []Change{d.newChange(
		KindMenuStructure, curr.TargetURL, "Navigation",
		renderMenu(prevMenu), renderMenu(currMenu))}
}

func menusEqual(a, b extract.Menu) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].Href != b[i].Href || a[i].Class != b[i].Class {
			return false
		}
	}
	return true
}

func renderMenu(m extract.Menu) string {
	lines := make([]string, 0, len(m))
	for _, item := range m {
		lines = append(lines, fmt.Sprintf("- %s (%s)", item.Text, item.Href))
	}
	return strings.Join(lines, "\n")
}

// compareVisual pixel-diffs the two screenshots. Skipped entirely when
// either capture is missing or the differ is not wired; never fatal.
func (d *Detector) compareVisual(ctx context.Context, prev, curr crawler.Snapshot) []Change {
	if d.visual == nil || prev.ScreenshotRef == "" || curr.ScreenshotRef == "" {
		return nil
	}
	diff, err := d.visual.Diff(ctx, prev.ScreenshotRef, curr.ScreenshotRef)
	if err != nil {
		d.logger.Warn("visual diff failed",
			zap.String("target", curr.TargetURL), zap.Error(err))
		return nil
	}
	if diff.PixelsChanged == 0 {
		return nil
	}
	c := Change{
		ID:          uuid.NewString(),
		Kind:        KindVisualChange,
		TargetURL:   curr.TargetURL,
		Location:    "Page appearance",
		Timestamp:   time.Now().UTC(),
		BeforeImage: diff.Before,
		AfterImage:  diff.After,
		DiffImage:   diff.Diff,
	}
	return []Change{c}
}

// setDifference returns the sorted members of a not present in b.
func setDifference(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := inB[v]; !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
