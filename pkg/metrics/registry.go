// Package metrics defines the instrumentation points of the journal
// engine and owns the process-wide Prometheus registry.
//
// Metrics are opt-in: until InitRegistry is called every constructor
// returns nil, and the nil-safe helpers make a nil instance free at the
// call sites.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	regMu    sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection. Call once at startup, before
// opening files whose handles should be instrumented.
func InitRegistry() {
	regMu.Lock()
	defer regMu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	regMu.RLock()
	defer regMu.RUnlock()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
