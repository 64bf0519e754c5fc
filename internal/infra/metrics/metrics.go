package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	EvaluationsTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "relationship_evaluations_total", Help: "Grid searches by relationship"}, []string{"relationship"})
	NotReadyTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "relationship_not_ready_total", Help: "Evaluations skipped because a book is missing"}, []string{"relationship"})
	DealsAccepted     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "deals_accepted_total", Help: "Deals passing the profit and age thresholds"}, []string{"relationship"})
	EvaluateLatencyUs = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "evaluate_latency_us", Help: "Grid search latency", Buckets: prometheus.ExponentialBuckets(1, 2, 16)})
	ProfitBps         = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "relationship_profit_bps", Help: "Best net profit per evaluation in bps", Buckets: prometheus.LinearBuckets(-50, 5, 41)})
	BestProfitBps     = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "relationship_best_profit_bps", Help: "Latest best net profit by relationship"}, []string{"relationship"})
	DataAgeMs         = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "book_data_age_ms", Help: "Age of the oldest book used by a deal", Buckets: prometheus.ExponentialBuckets(1, 2, 16)})
	LegSlippageBps    = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "leg_slippage_bps", Help: "Estimated slippage of accepted deal legs", Buckets: prometheus.LinearBuckets(0, 2, 26)}, []string{"side"})
	BookUpdatesTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "book_updates_total", Help: "Depth updates ingested by source"}, []string{"source"})
	BookRejectsTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "book_rejects_total", Help: "Depth updates rejected by source and reason"}, []string{"source", "reason"})
	WSReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ws_reconnects_total", Help: "WS reconnects by exchange and reason"}, []string{"exchange", "reason"})
	APIErrorsTotal    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "api_errors_total", Help: "API errors by exchange and endpoint"}, []string{"exchange", "endpoint"})
	SinkErrorsTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sink_errors_total", Help: "Deal sink failures"}, []string{"sink"})
	LatencyMeanMs     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "latency_window_mean_ms", Help: "Mean of the data age window"})
	LatencyStdDevMs   = prometheus.NewGauge(prometheus.GaugeOpts{Name: "latency_window_stddev_ms", Help: "Standard deviation of the data age window"})
	AdminDeniedTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "admin_denied_total", Help: "Admin requests rejected by the CIDR gate"})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		EvaluationsTotal, NotReadyTotal, DealsAccepted, EvaluateLatencyUs,
		ProfitBps, BestProfitBps, DataAgeMs, LegSlippageBps,
		BookUpdatesTotal, BookRejectsTotal, WSReconnectsTotal, APIErrorsTotal,
		SinkErrorsTotal, LatencyMeanMs, LatencyStdDevMs, AdminDeniedTotal,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
