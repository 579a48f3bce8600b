package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	OrdersReconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_reconciler_orders_reconciled_total",
		Help: "Total number of non-terminal orders refreshed from venue truth",
	})

	TradesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_reconciler_trades_recorded_total",
		Help: "Total number of fill trades recorded during reconciliation",
	})

	ErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_reconciler_errors_total",
		Help: "Total number of per-order reconciliation failures",
	})
)
