package ledger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics is the lazily-initialised, process-wide ledger metrics registry,
// following the teacher's observability.ModuleMetrics singleton pattern
// (observability/metrics.go): many Ledger instances — one per invariant-run
// trial, for instance — share a single set of registered collectors rather
// than each attempting to register its own and panicking on collision.
type metrics struct {
	commands *prometheus.CounterVec
	capacity *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	registry    *metrics
)

// Metrics returns the shared ledger metrics registry.
func Metrics() *metrics {
	metricsOnce.Do(func() {
		registry = &metrics{
			commands: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cellcore",
				Subsystem: "ledger",
				Name:      "commands_total",
				Help:      "Count of ledger commands segmented by command and outcome.",
			}, []string{"command", "outcome"}),
			capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "cellcore",
				Subsystem: "ledger",
				Name:      "available_capacity",
				Help:      "Available capacity last computed for a member by GetAvailableCapacity.",
			}, []string{"member"}),
		}
		prometheus.MustRegister(registry.commands, registry.capacity)
	})
	return registry
}

func (m *metrics) recordCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}

func (m *metrics) recordCapacity(member string, capacity int64) {
	if m == nil {
		return
	}
	m.capacity.WithLabelValues(member).Set(float64(capacity))
}
