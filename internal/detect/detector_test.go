package detect

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/crawler"
	"github.com/sitewatch/sitewatch/internal/extract"
)

// recordingScorer stamps every change so tests can see the scorer ran.
type recordingScorer struct {
	calls int
}

func (s *recordingScorer) ScoreChanges(_ context.Context, changes []Change) []Change {
	s.calls++
	for i := range changes {
		changes[i].SignificanceScore = 7
	}
	return changes
}

type fakeDiffer struct {
	diff VisualDiff
	err  error
}

func (d *fakeDiffer) Diff(_ context.Context, _, _ string) (VisualDiff, error) {
	return d.diff, d.err
}

type panickingDiffer struct{}

func (panickingDiffer) Diff(context.Context, string, string) (VisualDiff, error) {
	panic("differ exploded")
}

func snapshot(target, text string, links []string) crawler.Snapshot {
	return crawler.Snapshot{
		TargetURL:   target,
		TextContent: text,
		Links:       links,
		ContentHash: crawler.ContentFingerprint(text, links),
		Pages: []crawler.PageRecord{{
			URL:         target,
			Location:    "/",
			TextContent: text,
			Links:       links,
		}},
	}
}

func newTestDetector(scorer Scorer, visual VisualDiffer) *Detector {
	return NewDetector(NewMemoryBaselineStore(), scorer, visual, zap.NewNop())
}

func TestDetectFirstObservationIsSiteCheck(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, nil)
	snap := snapshot("https://example.com/", "hello world", nil)

	changes, err := d.Detect(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, KindSiteCheck, changes[0].Kind)
	assert.Equal(t, "https://example.com/", changes[0].TargetURL)
	require.Len(t, changes[0].Pages, 1)
	assert.Equal(t, "/", changes[0].Pages[0].Location)
	assert.NotEmpty(t, changes[0].ID)
}

func TestDetectUnchangedSnapshotEmitsHeartbeat(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, nil)
	snap := snapshot("https://example.com/", "stable content", nil)

	_, err := d.Detect(context.Background(), snap)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, KindSiteCheck, changes[0].Kind)
}

func TestDetectTextChange(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, nil)
	before := snapshot("https://example.com/", "Our product costs $10 and ships worldwide.", nil)
	after := snapshot("https://example.com/", "Our product is now free for everyone forever.", nil)

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, KindTextChange, changes[0].Kind)
	assert.Equal(t, "Paragraph 1", changes[0].Location)
	assert.Equal(t, "Our product costs $10 and ships worldwide.", changes[0].Before)
	assert.Equal(t, "Our product is now free for everyone forever.", changes[0].After)
}

func TestDetectNearIdenticalTextIsNoise(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, nil)
	long := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
	before := snapshot("https://example.com/", long, nil)
	// One character differs; similarity stays above the threshold.
	after := snapshot("https://example.com/", strings.Replace(long, "lazy", "lazy.", 1), nil)

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, KindSiteCheck, changes[0].Kind)
}

func TestDetectParagraphAddedAndRemoved(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, nil)
	before := snapshot("https://example.com/", "First paragraph.", nil)
	after := snapshot("https://example.com/", "First paragraph.\n\nBrand new paragraph.", nil)

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, KindTextChange, changes[0].Kind)
	assert.Equal(t, "Paragraph 2", changes[0].Location)
	assert.Empty(t, changes[0].Before)
	assert.Equal(t, "Brand new paragraph.", changes[0].After)
}

func TestDetectLinkChanges(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, nil)
	before := snapshot("https://example.com/", "same",
		[]string{"https://example.com/a", "https://example.com/b"})
	after := snapshot("https://example.com/", "same",
		[]string{"https://example.com/b", "https://example.com/c"})

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)

	byKind := map[Kind]Change{}
	for _, c := range changes {
		byKind[c.Kind] = c
	}
	require.Contains(t, byKind, KindLinksAdded)
	require.Contains(t, byKind, KindLinksRemoved)
	assert.Equal(t, "https://example.com/c", byKind[KindLinksAdded].After)
	assert.Equal(t, "https://example.com/a", byKind[KindLinksRemoved].Before)
	assert.Equal(t, "Links", byKind[KindLinksAdded].Location)
}

func TestDetectPageChanges(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, nil)

	before := snapshot("https://example.com/", "home", nil)
	before.Pages = append(before.Pages, crawler.PageRecord{
		URL: "https://example.com/old", Location: "/old", TextContent: "old page",
	})
	before.ContentHash = "hash-before"

	after := snapshot("https://example.com/", "home", nil)
	after.Pages = append(after.Pages, crawler.PageRecord{
		URL: "https://example.com/new", Location: "/new", TextContent: "new page",
	})
	after.ContentHash = "hash-after"

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)

	byKind := map[Kind]Change{}
	for _, c := range changes {
		byKind[c.Kind] = c
	}
	require.Contains(t, byKind, KindPageAdded)
	require.Contains(t, byKind, KindPageRemoved)
	assert.Equal(t, "https://example.com/new", byKind[KindPageAdded].After)
	assert.Equal(t, "/new", byKind[KindPageAdded].Location)
	assert.Equal(t, "https://example.com/old", byKind[KindPageRemoved].Before)
}

func TestDetectStyleChanges(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, nil)

	before := snapshot("https://example.com/", "same", nil)
	before.Styles = extract.StyleSet{Fonts: []string{"arial"}, Colors: []string{"#333"}}
	before.ContentHash = "hash-1"

	after := snapshot("https://example.com/", "same", nil)
	after.Styles = extract.StyleSet{Fonts: []string{"helvetica"}, Colors: []string{"#333", "red"}}
	after.ContentHash = "hash-2"

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)

	kinds := map[Kind]Change{}
	for _, c := range changes {
		kinds[c.Kind] = c
	}
	assert.Equal(t, "helvetica", kinds[KindFontsAdded].After)
	assert.Equal(t, "arial", kinds[KindFontsRemoved].Before)
	assert.Equal(t, "red", kinds[KindColorsAdded].After)
	_, sizesChanged := kinds[KindTextSizesAdded]
	assert.False(t, sizesChanged)
}

func TestDetectMenuChange(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, nil)

	before := snapshot("https://example.com/", "same", nil)
	before.MenuStructure = []extract.Menu{{
		{Text: "Home", Href: "/"},
		{Text: "About", Href: "/about"},
	}}
	before.ContentHash = "hash-1"

	after := snapshot("https://example.com/", "same", nil)
	after.MenuStructure = []extract.Menu{{
		{Text: "About", Href: "/about"},
		{Text: "Home", Href: "/"},
	}}
	after.ContentHash = "hash-2"

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, KindMenuStructure, changes[0].Kind)
	assert.Equal(t, "Navigation", changes[0].Location)
	assert.Contains(t, changes[0].Before, "- Home (/)")
	assert.Contains(t, changes[0].After, "- About (/about)")
}

func TestDetectVisualChange(t *testing.T) {
	t.Parallel()

	differ := &fakeDiffer{diff: VisualDiff{
		Before:        []byte("png-before"),
		After:         []byte("png-after"),
		Diff:          []byte("png-diff"),
		PixelsChanged: 1234,
	}}
	d := newTestDetector(nil, differ)

	before := snapshot("https://example.com/", "v1", nil)
	before.ScreenshotRef = "shots/before.png"
	after := snapshot("https://example.com/", "v2", nil)
	after.ScreenshotRef = "shots/after.png"

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)

	var visual *Change
	for i := range changes {
		if changes[i].Kind == KindVisualChange {
			visual = &changes[i]
		}
	}
	require.NotNil(t, visual)
	assert.Equal(t, []byte("png-diff"), visual.DiffImage)
	assert.Equal(t, "Page appearance", visual.Location)
}

func TestDetectIdenticalScreenshotsNoVisualChange(t *testing.T) {
	t.Parallel()

	differ := &fakeDiffer{diff: VisualDiff{PixelsChanged: 0}}
	d := newTestDetector(nil, differ)

	before := snapshot("https://example.com/", "v1", nil)
	before.ScreenshotRef = "shots/a.png"
	after := snapshot("https://example.com/", "v2", nil)
	after.ScreenshotRef = "shots/b.png"

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)
	for _, c := range changes {
		assert.NotEqual(t, KindVisualChange, c.Kind)
	}
}

func TestDetectComparatorPanicIsIsolated(t *testing.T) {
	t.Parallel()

	d := newTestDetector(nil, panickingDiffer{})

	before := snapshot("https://example.com/", "the original paragraph text here", nil)
	before.ScreenshotRef = "shots/a.png"
	after := snapshot("https://example.com/", "completely different wording now", nil)
	after.ScreenshotRef = "shots/b.png"

	_, err := d.Detect(context.Background(), before)
	require.NoError(t, err)

	changes, err := d.Detect(context.Background(), after)
	require.NoError(t, err)

	// The visual comparator died but the text comparator still reported.
	require.NotEmpty(t, changes)
	assert.Equal(t, KindTextChange, changes[0].Kind)
}

func TestDetectRunsScorer(t *testing.T) {
	t.Parallel()

	scorer := &recordingScorer{}
	d := newTestDetector(scorer, nil)

	snap := snapshot("https://example.com/", "content", nil)
	changes, err := d.Detect(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, 1, scorer.calls)
	require.Len(t, changes, 1)
	assert.Equal(t, 7, changes[0].SignificanceScore)
}

func TestMemoryBaselineStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryBaselineStore()
	ctx := context.Background()

	got, err := s.LoadBaseline(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.Nil(t, got)

	snap := snapshot("https://example.com/", "hello", nil)
	require.NoError(t, s.SaveBaseline(ctx, "https://example.com/", snap))

	got, err = s.LoadBaseline(ctx, "https://example.com/")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.ContentHash, got.ContentHash)
}
