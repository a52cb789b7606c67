package process

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	entries prometheus.Counter
	passes  *prometheus.CounterVec
}

// NewMetrics registers the pass counters with registerer, or with a
// private registry when registerer is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)
	return &Metrics{
		entries: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbor_process_entries_total",
			Help: "Number of entries handed to selectors.",
		}),
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_process_passes_total",
			Help: "Number of finished read passes by status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) processed(n int) {
	if m != nil {
		m.entries.Add(float64(n))
	}
}

func (m *Metrics) finished(status string) {
	if m != nil {
		m.passes.WithLabelValues(status).Inc()
	}
}
