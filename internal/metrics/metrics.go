package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// History
	HistoryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "history",
		Name:      "requests_total",
		Help:      "Total transaction history requests by outcome",
	}, []string{"status"})

	HistoryBoundFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "history",
		Name:      "bound_fallbacks_total",
		Help:      "Block bounds that failed upstream and were replaced by 0",
	}, []string{"bound"})

	HistoryTransactionsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "txhistory",
		Subsystem: "history",
		Name:      "transactions_returned",
		Help:      "Transactions returned per history request",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	})

	CertificatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "history",
		Name:      "certificates_dropped_total",
		Help:      "Certificate rows dropped for an unrecognized formal type",
	})

	// Store
	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "txhistory",
		Subsystem: "store",
		Name:      "query_duration_seconds",
		Help:      "Store round-trip duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"query", "status"})

	StoreRowsReturned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "store",
		Name:      "rows_returned_total",
		Help:      "Rows returned by store queries",
	}, []string{"query"})

	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "txhistory",
		Subsystem: "db_pool",
		Name:      "open_connections",
		Help:      "Open connections in the database pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "txhistory",
		Subsystem: "db_pool",
		Name:      "in_use_connections",
		Help:      "Connections currently in use",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "txhistory",
		Subsystem: "db_pool",
		Name:      "idle_connections",
		Help:      "Idle connections in the pool",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "txhistory",
		Subsystem: "db_pool",
		Name:      "wait_count",
		Help:      "Total number of connections waited for",
	})

	DBPoolWaitDurationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "txhistory",
		Subsystem: "db_pool",
		Name:      "wait_duration_seconds",
		Help:      "Total time blocked waiting for a new connection",
	})

	// Metadata service
	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "metadata",
		Name:      "lookups_total",
		Help:      "Auxiliary lookups by result (ok, no_value, not_understood, transport_error, invalid_input)",
	}, []string{"lookup", "result"})

	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "metadata",
		Name:      "rpc_calls_total",
		Help:      "Outbound calls to the metadata service by status class",
	}, []string{"service", "operation", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "metadata",
		Name:      "rate_limit_waits_total",
		Help:      "Outbound calls delayed by the client-side rate limiter",
	}, []string{"service"})

	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Alerts delivered by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Alerts suppressed by the per-type cooldown",
	}, []string{"channel", "type"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "txhistory",
		Subsystem: "metadata",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	// API
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP API requests by route and status code",
	}, []string{"route", "code"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "txhistory",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP API request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	APIRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txhistory",
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-IP rate limiter",
	}, []string{"route"})
)
