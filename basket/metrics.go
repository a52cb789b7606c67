package basket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	batches prometheus.Counter
	bytes   prometheus.Counter
	hits    prometheus.Counter
	misses  prometheus.Counter
}

// NewMetrics registers the basket counters with registerer, or with a
// private registry when registerer is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)
	return &Metrics{
		batches: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbor_basket_fetch_batches_total",
			Help: "Number of basket fetch batches sent to storage.",
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbor_basket_fetch_bytes_total",
			Help: "Number of stored basket bytes read from storage.",
		}),
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbor_basket_cache_hits_total",
			Help: "Number of baskets served from the cache.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbor_basket_cache_misses_total",
			Help: "Number of baskets missing from the cache.",
		}),
	}
}

func (m *Metrics) fetched(n int) {
	if m != nil {
		m.batches.Inc()
		m.bytes.Add(float64(n))
	}
}

func (m *Metrics) cache(hits, misses int) {
	if m != nil {
		m.hits.Add(float64(hits))
		m.misses.Add(float64(misses))
	}
}
