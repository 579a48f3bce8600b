package matcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	EventsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_matcher_events_processed_total",
		Help: "Total number of market events successfully processed",
	})

	PoisonEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_matcher_poison_events_total",
		Help: "Total number of undecodable market events dropped",
	})

	PairsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_matcher_pairs_confirmed_total",
		Help: "Total number of newly confirmed market pairs published",
	})

	VerdictCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_matcher_verdict_cache_hits_total",
		Help: "Total number of judge verdicts served from the memo cache",
	})
)
