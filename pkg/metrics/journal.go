package metrics

import "time"

// Commit outcomes, the label values of the commit counter.
const (
	OutcomeCommitted = "committed"
	OutcomePreserved = "preserved" // failed, data file untouched
	OutcomeBroken    = "broken"    // failed past the commit point
)

// Journal instruments the commit engine and the recovery pass.
//
// Implementations must be safe for concurrent use. A nil Journal is valid
// and means metrics are disabled; use the package helpers so the nil
// check stays in one place.
type Journal interface {
	// ObserveCommit records one finished commit attempt.
	ObserveCommit(outcome string, bytes int64, duration time.Duration)

	// SetLingering records the current depth of the lingering queue.
	SetLingering(records int, bytes int64)

	// AddRecovered counts records handled by a recovery pass, by class.
	AddRecovered(class string, n int)
}

// NewJournalMetrics returns the Prometheus-backed implementation, or nil
// when metrics are disabled.
func NewJournalMetrics() Journal {
	if !IsEnabled() || newPrometheusJournal == nil {
		return nil
	}
	return newPrometheusJournal()
}

// newPrometheusJournal is installed by pkg/metrics/prometheus at init
// time. The indirection keeps this package free of an import cycle with
// the implementation.
var newPrometheusJournal func() Journal

// RegisterJournalConstructor installs the Prometheus constructor. Called
// from pkg/metrics/prometheus during package initialization.
func RegisterJournalConstructor(constructor func() Journal) {
	newPrometheusJournal = constructor
}

// ObserveCommit is the nil-safe form of Journal.ObserveCommit.
func ObserveCommit(m Journal, outcome string, bytes int64, duration time.Duration) {
	if m != nil {
		m.ObserveCommit(outcome, bytes, duration)
	}
}

// SetLingering is the nil-safe form of Journal.SetLingering.
func SetLingering(m Journal, records int, bytes int64) {
	if m != nil {
		m.SetLingering(records, bytes)
	}
}

// AddRecovered is the nil-safe form of Journal.AddRecovered.
func AddRecovered(m Journal, class string, n int) {
	if m != nil && n > 0 {
		m.AddRecovered(class, n)
	}
}
