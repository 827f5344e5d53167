// Package notify delivers detected-change notifications. Delivery is
// fire-and-forget: failures are logged, never raised to the pipeline.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/detect"
)

// Notifier delivers a batch of changes for one target.
type Notifier interface {
	Notify(ctx context.Context, target string, changes []detect.Change) error
}

// LogNotifier records notifications in the application log. Used as the
// default sink and as the fallback when no transport is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs a summary line per change.
func (n *LogNotifier) Notify(_ context.Context, target string, changes []detect.Change) error {
	for _, c := range changes {
		n.logger.Info("change detected",
			zap.String("target", target),
			zap.String("kind", string(c.Kind)),
			zap.String("location", c.Location),
			zap.Int("significance", c.SignificanceScore))
	}
	return nil
}

// renderBody produces the plain-text notification body: one block per
// change with type, location, and the before/after excerpt.
func renderBody(target string, changes []detect.Change) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The following changes were detected on %s:\n\n", target)
	for _, c := range changes {
		fmt.Fprintf(&b, "Type: %s\n", c.Kind)
		fmt.Fprintf(&b, "Location: %s\n", c.Location)
		fmt.Fprintf(&b, "Significance: %d/10\n", c.SignificanceScore)
		if c.Before != "" {
			fmt.Fprintf(&b, "Before: %s\n", c.Before)
		}
		if c.After != "" {
			fmt.Fprintf(&b, "After: %s\n", c.After)
		}
		if c.Analysis != nil && c.Analysis.Explanation != "" {
			fmt.Fprintf(&b, "Analysis: %s\n", c.Analysis.Explanation)
		}
		b.WriteString(strings.Repeat("-", 50) + "\n")
	}
	return b.String()
}

// Multi fans a notification out to several transports. Each transport's
// failure is logged and does not stop the others.
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMulti constructs a fan-out notifier.
func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, logger: logger}
}

// Notify delivers through every transport.
func (m *Multi) Notify(ctx context.Context, target string, changes []detect.Change) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, target, changes); err != nil {
			m.logger.Warn("notification delivery failed",
				zap.String("target", target), zap.Error(err))
		}
	}
	return nil
}
