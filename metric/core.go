package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the core runtime metrics for the event loop and the service
// lifecycle. All metrics carry the servicekit_ prefix.
type Metrics struct {
	EventsPushed        *prometheus.CounterVec
	EventsDispatched    *prometheus.CounterVec
	DispatchDuration    *prometheus.HistogramVec
	QueueDepth          prometheus.Gauge
	SuspendedGenerators prometheus.Gauge
	ServiceStates       *prometheus.GaugeVec
}

// NewMetrics creates the core metric set. Register it through a
// MetricsRegistry rather than using it standalone.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicekit_events_pushed_total",
			Help: "Events pushed onto the priority queue, by event type",
		}, []string{"event_type"}),
		EventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servicekit_events_dispatched_total",
			Help: "Events fully dispatched by the loop, by event type",
		}, []string{"event_type"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "servicekit_dispatch_duration_seconds",
			Help:    "Wall time spent dispatching one event, by event type",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, 8),
		}, []string{"event_type"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servicekit_queue_depth",
			Help: "Events currently waiting in the priority queue",
		}),
		SuspendedGenerators: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "servicekit_suspended_generators",
			Help: "Handler generators currently suspended on an await",
		}),
		ServiceStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "servicekit_service_state",
			Help: "Lifecycle state per service implementation (1 = current state)",
		}, []string{"service", "state"}),
	}
}

// RecordEventPushed counts one pushed event.
func (m *Metrics) RecordEventPushed(eventType string) {
	m.EventsPushed.WithLabelValues(eventType).Inc()
}

// RecordEventDispatched counts one dispatched event and its duration.
func (m *Metrics) RecordEventDispatched(eventType string, seconds float64) {
	m.EventsDispatched.WithLabelValues(eventType).Inc()
	m.DispatchDuration.WithLabelValues(eventType).Observe(seconds)
}

// SetQueueDepth records the current queue depth.
func (m *Metrics) SetQueueDepth(depth float64) {
	m.QueueDepth.Set(depth)
}

// SetSuspendedGenerators records the current suspended generator count.
func (m *Metrics) SetSuspendedGenerators(n float64) {
	m.SuspendedGenerators.Set(n)
}

// RecordServiceState marks the current lifecycle state of a service
// implementation, clearing the previously recorded state.
func (m *Metrics) RecordServiceState(service, state string) {
	m.ServiceStates.DeletePartialMatch(prometheus.Labels{"service": service})
	m.ServiceStates.WithLabelValues(service, state).Set(1)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EventsPushed,
		m.EventsDispatched,
		m.DispatchDuration,
		m.QueueDepth,
		m.SuspendedGenerators,
		m.ServiceStates,
	}
}
