package event

import "github.com/prometheus/client_golang/prometheus"

// eventBusMetricsProvider is nil-safe: a bus created without a registry
// carries a nil provider and every increment is a no-op.
type eventBusMetricsProvider struct {
	published *prometheus.CounterVec
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

func newEventBusMetricsProvider(registry *prometheus.Registry) *eventBusMetricsProvider {
	if registry == nil {
		return nil
	}

	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: "eventbus",
				Name:      name,
				Help:      help,
			},
			[]string{"event_type"},
		)
	}

	provider := &eventBusMetricsProvider{
		published: counter("events_published_total", "Total number of events published by event type"),
		delivered: counter("events_delivered_total", "Total number of events delivered by event type"),
		dropped:   counter("events_dropped_total", "Total number of events dropped due to full channel buffers"),
	}

	registry.MustRegister(
		provider.published,
		provider.delivered,
		provider.dropped,
	)

	return provider
}

func (p *eventBusMetricsProvider) IncrementPublished(eventType string) {
	if p != nil {
		p.published.WithLabelValues(eventType).Inc()
	}
}

func (p *eventBusMetricsProvider) IncrementDelivered(eventType string) {
	if p != nil {
		p.delivered.WithLabelValues(eventType).Inc()
	}
}

func (p *eventBusMetricsProvider) IncrementDropped(eventType string) {
	if p != nil {
		p.dropped.WithLabelValues(eventType).Inc()
	}
}
