package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	MarketsDiscoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_poller_markets_discovered_total",
		Help: "Total number of newly discovered markets published, by venue",
	}, []string{"venue"})

	VenueErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossarb_poller_venue_errors_total",
		Help: "Total number of failed venue polling cycles, by venue",
	}, []string{"venue"})
)
