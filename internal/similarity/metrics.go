package similarity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	IndexUpsertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_similarity_index_upserts_total",
		Help: "Total number of records upserted into the similarity index",
	})

	IndexSearchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_similarity_index_searches_total",
		Help: "Total number of nearest-neighbour searches",
	})

	JudgeCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_similarity_judge_calls_total",
		Help: "Total number of LLM judge invocations",
	})

	JudgeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_similarity_judge_errors_total",
		Help: "Total number of failed judge calls, treated as false verdicts",
	})

	JudgeConfirmationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossarb_similarity_judge_confirmations_total",
		Help: "Total number of true verdicts from the judge",
	})
)
