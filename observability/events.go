package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published *prometheus.CounterVec
	indexed   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking published ledger notifications.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tipd",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of notifications published after commit, by event type.",
			}, []string{"type"}),
			indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tipd",
				Subsystem: "events",
				Name:      "indexed_total",
				Help:      "Count of notifications handled by the activity indexer, by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.indexed)
	})
	return eventRegistry
}

// RecordPublished increments the counter for the supplied event type.
func (m *eventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.published.WithLabelValues(normalized).Inc()
}

// RecordIndexed counts an indexer outcome such as "stored", "dropped" or "failed".
func (m *eventMetrics) RecordIndexed(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.indexed.WithLabelValues(outcome).Inc()
}
