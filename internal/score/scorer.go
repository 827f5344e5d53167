// Package score assigns business-significance ratings to detected changes
// by delegating to an external classifier, with a neutral local fallback so
// scoring never blocks the pipeline.
package score

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/detect"
)

// Classifier is the external classification boundary. Implementations must
// honor the context deadline and are treated as fallible.
type Classifier interface {
	Classify(ctx context.Context, changeDescription string) (Verdict, error)
}

// Verdict is the classifier's structured assessment of one change.
type Verdict struct {
	Score             int    `json:"score"`
	Explanation       string `json:"explanation"`
	ImpactCategory    string `json:"impact_category"`
	BusinessRelevance string `json:"business_relevance"`
	Recommendations   string `json:"recommendations"`
}

// fallbackVerdict is used whenever the classifier fails: neutral score,
// manual review suggested.
var fallbackVerdict = Verdict{
	Score:             5,
	Explanation:       "Automated scoring unavailable",
	ImpactCategory:    "Unknown",
	BusinessRelevance: "Could not determine",
	Recommendations:   "Manual review recommended",
}

// Scorer annotates changes with significance scores and analysis.
type Scorer struct {
	classifier Classifier
	timeout    time.Duration
	logger     *zap.Logger
}

// NewScorer constructs a Scorer. classifier may be nil, in which case every
// change receives the neutral fallback.
func NewScorer(classifier Classifier, timeout time.Duration, logger *zap.Logger) *Scorer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scorer{classifier: classifier, timeout: timeout, logger: logger}
}

// ScoreChange augments a single change with its significance verdict.
// site_check heartbeats are not diffs and pass through unscored; they never
// reach the classifier.
func (s *Scorer) ScoreChange(ctx context.Context, change detect.Change) detect.Change {
	if change.Kind == detect.KindSiteCheck {
		return change
	}
	verdict := s.classify(ctx, change)
	change.SignificanceScore = clampScore(verdict.Score)
	change.Analysis = &detect.Analysis{
		Explanation:       verdict.Explanation,
		ImpactCategory:    verdict.ImpactCategory,
		BusinessRelevance: verdict.BusinessRelevance,
		Recommendations:   verdict.Recommendations,
	}
	return change
}

// ScoreChanges scores every change and returns them sorted by significance
// descending. The sort is stable: ties keep their original order.
func (s *Scorer) ScoreChanges(ctx context.Context, changes []detect.Change) []detect.Change {
	scored := make([]detect.Change, 0, len(changes))
	for _, c := range changes {
		scored = append(scored, s.ScoreChange(ctx, c))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].SignificanceScore > scored[j].SignificanceScore
	})
	return scored
}

func (s *Scorer) classify(ctx context.Context, change detect.Change) Verdict {
	if s.classifier == nil {
		return fallbackVerdict
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	verdict, err := s.classifier.Classify(ctx, change.Description())
	if err != nil {
		s.logger.Warn("classifier failed, using neutral score",
			zap.String("change_id", change.ID),
			zap.String("kind", string(change.Kind)),
			zap.Error(err))
		return fallbackVerdict
	}
	return verdict
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
