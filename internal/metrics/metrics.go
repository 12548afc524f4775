// Package metrics exposes Prometheus collectors for the processor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Event processing results, used as the "result" label value.
const (
	ResultOK      = "ok"      // handler completed (including soft not-found no-ops)
	ResultInvalid = "invalid" // decode or validation failure, event skipped
	ResultSkipped = "skipped" // topic mismatch or unmatched topic, event skipped
	ResultFailed  = "failed"  // database/infrastructure failure, event redelivered
)

// Collector tracks per-topic event processing outcomes.
type Collector struct {
	eventsTotal *prometheus.CounterVec
}

// NewCollector creates a Collector registered on the given registerer.
// Pass nil to use the default registerer.
func NewCollector(registerer prometheus.Registerer) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memberproc",
			Subsystem: "consumer",
			Name:      "events_total",
			Help:      "Total number of bus events handled, by topic and result",
		},
		[]string{"topic", "result"},
	)
	registerer.MustRegister(eventsTotal)

	return &Collector{eventsTotal: eventsTotal}
}

// ObserveEvent records the outcome of one event.
func (c *Collector) ObserveEvent(topic, result string) {
	c.eventsTotal.WithLabelValues(topic, result).Inc()
}
