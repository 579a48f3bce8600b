package finder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	PairsEvaluatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_finder_pairs_evaluated_total",
		Help: "Total number of market pairs evaluated for arbitrage",
	})

	PoisonPairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_finder_poison_pairs_total",
		Help: "Total number of undecodable pair records dropped",
	})

	OpportunitiesPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_finder_opportunities_published_total",
		Help: "Total number of sized opportunities published",
	})
)
