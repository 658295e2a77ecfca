package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart mutations, persistence flushes and notification drops.
type CartMetrics struct {
	mutations     *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
	storeFailures *prometheus.CounterVec
	droppedEvents *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation and result.",
	}, []string{"op", "result"})
	flushDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_flush_duration_seconds",
		Help:    "Duration of debounced cart persistence flushes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"store"})
	storeFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_store_failures_total",
		Help: "Cart session store failures by operation.",
	}, []string{"op"})
	droppedEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_events_dropped_total",
		Help: "Cart notifications dropped because a subscriber was full.",
	}, []string{"type"})
	reg.MustRegister(mutations, flushDuration, storeFailures, droppedEvents)
	return &CartMetrics{
		mutations:     mutations,
		flushDuration: flushDuration,
		storeFailures: storeFailures,
		droppedEvents: droppedEvents,
	}
}

// IncMutation counts a mutation outcome such as "ok", "capacity" or "invalid".
func (c *CartMetrics) IncMutation(op, result string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

// ObserveFlush records how long a flush against the named store took.
func (c *CartMetrics) ObserveFlush(store string, duration time.Duration) {
	if c == nil || c.flushDuration == nil {
		return
	}
	c.flushDuration.WithLabelValues(normalizeLabel(store)).Observe(duration.Seconds())
}

// IncStoreFailure counts a failed load/save/clear.
func (c *CartMetrics) IncStoreFailure(op string) {
	if c == nil || c.storeFailures == nil {
		return
	}
	c.storeFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncDroppedEvent counts a notification a subscriber missed.
func (c *CartMetrics) IncDroppedEvent(eventType string) {
	if c == nil || c.droppedEvents == nil {
		return
	}
	c.droppedEvents.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
