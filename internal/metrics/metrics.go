package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_events_applied_total",
		Help: "Settlement events committed, by resulting obligation state.",
	}, []string{"state"})

	SettlementsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_events_rejected_total",
		Help: "Settlement events rejected, by error class.",
	}, []string{"class"})

	SettlementsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_events_duplicate_total",
		Help: "Settlement events replayed with an already applied event id.",
	})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_apply_duration_seconds",
		Help:    "Time spent applying one settlement event.",
		Buckets: prometheus.DefBuckets,
	})

	TenderAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_tender_amount_total",
		Help: "Amount tendered per tender kind.",
	}, []string{"kind"})

	FulfillmentsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_triggers_raised_total",
		Help: "Fulfillment triggers raised by obligations reaching SETTLED.",
	})

	StockLinesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_stock_lines_total",
		Help: "Stock decrement lines handled, by outcome.",
	}, []string{"outcome"})

	StockShortfalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_stock_shortfalls_total",
		Help: "Stock decrements clamped at zero.",
	})

	RetryQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fulfillment_retry_queue_depth",
		Help: "Stock decrement lines waiting for an asynchronous retry.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests served, by method, route and status class.",
	}, []string{"method", "route", "status_class"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
