// Package metrics registers the Prometheus instruments shared across
// subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal counts completed monitoring checks by outcome.
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitewatch",
		Name:      "checks_total",
		Help:      "Monitoring checks run, labelled by outcome.",
	}, []string{"outcome"})

	// PagesFetched counts pages fetched during crawls by result.
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitewatch",
		Name:      "pages_fetched_total",
		Help:      "Pages fetched during crawls, labelled by result.",
	}, []string{"result"})

	// FetchRetries counts retry attempts issued by the fetch loop.
	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitewatch",
		Name:      "fetch_retries_total",
		Help:      "Retry attempts issued for transient fetch failures.",
	})

	// ChangesDetected counts emitted changes by kind.
	ChangesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitewatch",
		Name:      "changes_detected_total",
		Help:      "Changes emitted by the detector, labelled by kind.",
	}, []string{"kind"})

	// CrawlDuration observes end-to-end crawl time per target.
	CrawlDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sitewatch",
		Name:      "crawl_duration_seconds",
		Help:      "End-to-end crawl duration.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
