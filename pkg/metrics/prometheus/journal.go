// Package prometheus provides the Prometheus-backed implementation of
// the metrics interfaces. Importing it (even blank) registers the
// constructors with pkg/metrics.
package prometheus

import (
	"sync"
	"time"

	"github.com/marmos91/jfile/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterJournalConstructor(func() metrics.Journal {
		return sharedJournalMetrics()
	})
}

var (
	journalOnce sync.Once
	journalInst *journalMetrics
)

// sharedJournalMetrics builds the instruments once per process. Handles
// share them; registering the same collector names twice would panic.
func sharedJournalMetrics() *journalMetrics {
	journalOnce.Do(func() {
		journalInst = newJournalMetrics()
	})
	return journalInst
}

// journalMetrics is the Prometheus implementation of metrics.Journal.
type journalMetrics struct {
	commits        *prometheus.CounterVec
	committedBytes prometheus.Counter
	commitSeconds  prometheus.Histogram
	lingerRecords  prometheus.Gauge
	lingerBytes    prometheus.Gauge
	recovered      *prometheus.CounterVec
}

func newJournalMetrics() *journalMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return &journalMetrics{
		commits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "jfile_commits_total",
				Help: "Total transaction commit attempts by outcome",
			},
			[]string{"outcome"}, // "committed", "preserved", "broken"
		),
		committedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "jfile_committed_bytes_total",
				Help: "Total new bytes made durable by committed transactions",
			},
		),
		commitSeconds: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jfile_commit_duration_seconds",
				Help:    "Commit latency from stage to return",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		lingerRecords: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "jfile_lingering_records",
				Help: "Journal records whose data-file apply is deferred",
			},
		),
		lingerBytes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "jfile_lingering_bytes",
				Help: "New bytes held by lingering journal records",
			},
		),
		recovered: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "jfile_recovered_records_total",
				Help: "Journal records handled by recovery passes, by class",
			},
			[]string{"class"}, // "reapplied", "in_progress", "broken", "corrupt", "invalid", "apply_error"
		),
	}
}

// ObserveCommit records one finished commit attempt.
func (m *journalMetrics) ObserveCommit(outcome string, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
	if outcome == metrics.OutcomeCommitted {
		m.committedBytes.Add(float64(bytes))
	}
	m.commitSeconds.Observe(duration.Seconds())
}

// SetLingering records the current depth of the lingering queue.
func (m *journalMetrics) SetLingering(records int, bytes int64) {
	if m == nil {
		return
	}
	m.lingerRecords.Set(float64(records))
	m.lingerBytes.Set(float64(bytes))
}

// AddRecovered counts records handled by a recovery pass.
func (m *journalMetrics) AddRecovered(class string, n int) {
	if m == nil {
		return
	}
	m.recovered.WithLabelValues(class).Add(float64(n))
}

var _ metrics.Journal = (*journalMetrics)(nil)
