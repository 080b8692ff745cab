package reconcile

import "github.com/prometheus/client_golang/prometheus"

type metricsProvider struct {
	passes  prometheus.Counter
	pairs   *prometheus.CounterVec
	orphans prometheus.Counter
}

func newMetricsProvider(registry *prometheus.Registry) *metricsProvider {
	if registry == nil {
		return nil
	}

	provider := &metricsProvider{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_passes_total",
			Help: "Total number of reconciliation passes run",
		}),
		pairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_pairs_total",
				Help: "Total number of pairs produced by state",
			},
			[]string{"state"},
		),
		orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_orphan_results_total",
			Help: "Total number of tool results excluded as orphans",
		}),
	}

	registry.MustRegister(provider.passes, provider.pairs, provider.orphans)
	return provider
}

func (p *metricsProvider) ObservePass(pairs []ToolCallPair, idx *resultIndex) {
	if p == nil {
		return
	}

	p.passes.Inc()
	for _, pair := range pairs {
		p.pairs.WithLabelValues(string(pair.State)).Inc()
	}
	for _, result := range idx.all {
		if !idx.claimed[result.MessageID] {
			p.orphans.Inc()
		}
	}
}
