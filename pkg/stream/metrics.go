package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsAppendedTotal tracks records appended per stream.
	RecordsAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossarb_stream_records_appended_total",
			Help: "Total number of records appended to log streams",
		},
		[]string{"stream"},
	)

	// AppendErrorsTotal tracks failed appends per stream.
	AppendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossarb_stream_append_errors_total",
			Help: "Total number of failed stream appends",
		},
		[]string{"stream"},
	)

	// RecordsReadTotal tracks records delivered per stream and group.
	RecordsReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossarb_stream_records_read_total",
			Help: "Total number of records delivered to consumer groups",
		},
		[]string{"stream", "group"},
	)

	// RecordsAckedTotal tracks acknowledged records per stream and group.
	RecordsAckedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossarb_stream_records_acked_total",
			Help: "Total number of acknowledged records",
		},
		[]string{"stream", "group"},
	)
)
