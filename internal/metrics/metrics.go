// Package metrics provides Prometheus metrics for update checks and storage migrations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeUpdateAvailable = "update_available"
	OutcomeUpToDate        = "up_to_date"
	OutcomeFeedError       = "feed_error"
	OutcomeInvalidVersion  = "invalid_version"
	OutcomeCached          = "cached"

	OutcomeCompleted  = "completed"
	OutcomeNoop       = "noop"
	OutcomeRejected   = "rejected"
	OutcomeRolledBack = "rolled_back"
	OutcomePartial    = "partial"
)

var (
	updateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nooltools",
		Subsystem: "update",
		Name:      "checks_total",
		Help:      "Update checks by outcome",
	}, []string{"outcome"})

	feedLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nooltools",
		Subsystem: "update",
		Name:      "feed_request_seconds",
		Help:      "Release feed request latency",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
	})

	migrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nooltools",
		Subsystem: "storage",
		Name:      "migrations_total",
		Help:      "Data directory migrations by outcome",
	}, []string{"outcome"})

	migrationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nooltools",
		Subsystem: "storage",
		Name:      "migration_duration_seconds",
		Help:      "Wall time of data directory migrations",
		Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
	})

	migrationConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nooltools",
		Subsystem: "storage",
		Name:      "migration_conflicts_total",
		Help:      "Destination entries backed up during migrations",
	})

	customDataDir = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nooltools",
		Subsystem: "storage",
		Name:      "custom_data_dir",
		Help:      "1 when the data directory is not the default location",
	})
)

// RecordUpdateCheck counts one update check.
func RecordUpdateCheck(outcome string) {
	updateChecks.WithLabelValues(outcome).Inc()
}

// ObserveFeedLatency records how long a feed request took.
func ObserveFeedLatency(d time.Duration) {
	feedLatency.Observe(d.Seconds())
}

// RecordMigration counts a finished migration and its duration.
func RecordMigration(outcome string, d time.Duration) {
	migrations.WithLabelValues(outcome).Inc()
	if outcome != OutcomeRejected && outcome != OutcomeNoop {
		migrationDuration.Observe(d.Seconds())
	}
}

// AddMigrationConflicts adds n backed-up conflicts.
func AddMigrationConflicts(n int) {
	if n > 0 {
		migrationConflicts.Add(float64(n))
	}
}

// SetCustomDataDir reports whether a custom data directory is active.
func SetCustomDataDir(custom bool) {
	if custom {
		customDataDir.Set(1)
		return
	}
	customDataDir.Set(0)
}

// Handler returns the Prometheus scrape handler for all promauto metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
