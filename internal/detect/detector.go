package detect

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/crawler"
	"github.com/sitewatch/sitewatch/internal/metrics"
)

// BaselineStore keeps the last-seen snapshot per target. The detector is
// uninitialized for a target until a baseline exists.
type BaselineStore interface {
	// LoadBaseline returns nil when no baseline exists for the target.
	LoadBaseline(ctx context.Context, target string) (*crawler.Snapshot, error)
	SaveBaseline(ctx context.Context, target string, snap crawler.Snapshot) error
}

// Scorer annotates changes with significance scores. Implementations must be
// best-effort: scoring never blocks detection.
type Scorer interface {
	ScoreChanges(ctx context.Context, changes []Change) []Change
}

// VisualDiff is the raster triple produced by comparing two screenshots.
// PixelsChanged is zero when the captures are identical.
type VisualDiff struct {
	Before        []byte
	After         []byte
	Diff          []byte
	PixelsChanged int
}

// VisualDiffer compares two stored screenshot captures by reference.
type VisualDiffer interface {
	Diff(ctx context.Context, beforeRef, afterRef string) (VisualDiff, error)
}

// Detector diffs snapshots against the stored per-target baseline.
type Detector struct {
	baselines BaselineStore
	scorer    Scorer
	visual    VisualDiffer
	logger    *zap.Logger
}

// NewDetector constructs a Detector. scorer and visual may be nil; the
// corresponding steps are then skipped.
func NewDetector(baselines BaselineStore, scorer Scorer, visual VisualDiffer, logger *zap.Logger) *Detector {
	return &Detector{
		baselines: baselines,
		scorer:    scorer,
		visual:    visual,
		logger:    logger,
	}
}

// Detect compares snap against the stored baseline for its target and
// returns the scored change list. The first observation of a target emits a
// single site_check and establishes the baseline. When the diff set comes
// out empty (equal hashes included) a site_check heartbeat is emitted so
// every completed check leaves a record. The baseline is replaced
// unconditionally after comparison.
func (d *Detector) Detect(ctx context.Context, snap crawler.Snapshot) ([]Change, error) {
	target := snap.TargetURL

	previous, err := d.baselines.LoadBaseline(ctx, target)
	if err != nil {
		return nil, err
	}

	var changes []Change
	if previous != nil && previous.ContentHash != snap.ContentHash {
		changes = d.compare(ctx, *previous, snap)
	}
	if len(changes) == 0 {
		changes = []Change{d.siteCheck(snap)}
	}

	if err := d.baselines.SaveBaseline(ctx, target, snap); err != nil {
		return nil, err
	}

	for _, c := range changes {
		metrics.ChangesDetected.WithLabelValues(string(c.Kind)).Inc()
	}
	if d.scorer != nil {
		changes = d.scorer.ScoreChanges(ctx, changes)
	}
	return changes, nil
}

// compare runs every comparator. Each one is isolated: a panic or error in
// one dimension degrades to "no changes of that kind" and must not block
// the others.
func (d *Detector) compare(ctx context.Context, prev, curr crawler.Snapshot) []Change {
	var changes []Change
	comparators := []struct {
		name string
		run  func() []Change
	}{
		{"text", func() []Change { return d.compareText(prev, curr) }},
		{"links", func() []Change { return d.compareLinks(prev, curr) }},
		{"pages", func() []Change { return d.comparePages(prev, curr) }},
		{"styles", func() []Change { return d.compareStyles(prev, curr) }},
		{"menu", func() []Change { return d.compareMenus(prev, curr) }},
		{"visual", func() []Change { return d.compareVisual(ctx, prev, curr) }},
	}
	for _, cmp := range comparators {
		changes = append(changes, d.runIsolated(cmp.name, cmp.run)...)
	}
	return changes
}

func (d *Detector) runIsolated(name string, run func() []Change) (out []Change) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("comparator panicked",
				zap.String("comparator", name),
				zap.Any("panic", r))
			out = nil
		}
	}()
	return run()
}

func (d *Detector) siteCheck(snap crawler.Snapshot) Change {
	pages := make([]PageRef, 0, len(snap.Pages))
	for _, p := range snap.Pages {
		pages = append(pages, PageRef{URL: p.URL, Location: p.Location})
	}
	return Change{
		ID:        uuid.NewString(),
		Kind:      KindSiteCheck,
		TargetURL: snap.TargetURL,
		Location:  "Site",
		Timestamp: time.Now().UTC(),
		Pages:     pages,
	}
}

func (d *Detector) newChange(kind Kind, target, location, before, after string) Change {
	return Change{
		ID:        uuid.NewString(),
		Kind:      kind,
		TargetURL: target,
		Location:  location,
		Timestamp: time.Now().UTC(),
		Before:    before,
		After:     after,
	}
}
