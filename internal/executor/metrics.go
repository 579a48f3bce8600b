package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	OpportunitiesExecutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_executor_opportunities_executed_total",
		Help: "Total number of opportunities fully executed",
	})

	OpportunitiesAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_executor_opportunities_abandoned_total",
		Help: "Total number of opportunities abandoned mid-execution",
	})

	PoisonOpportunitiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_executor_poison_opportunities_total",
		Help: "Total number of undecodable opportunity records dropped",
	})

	ChunksExecutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_executor_chunks_executed_total",
		Help: "Total number of chunks where both legs fully filled",
	})

	ChunkTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_executor_chunk_timeouts_total",
		Help: "Total number of chunks abandoned on the fill barrier deadline",
	})

	SharesExecutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_executor_shares_executed_total",
		Help: "Total number of shares executed across both legs",
	})
)
