package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	SizerEvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_sizer_evaluations_total",
		Help: "Total number of candidate trades evaluated by the sizer",
	})

	OpportunitiesFoundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_opportunities_found_total",
		Help: "Total number of sized opportunities, by candidate type",
	}, []string{"type"})

	OpportunitySharesHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossarb_opportunity_shares",
		Help:    "Distribution of sized opportunity quantities",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)
