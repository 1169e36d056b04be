package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gözlemler: callback | poll | creation x applied | noop | rejected
	Observations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_observations_total",
			Help: "Status observations processed by the reconciler",
		},
		[]string{"source", "outcome"},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Terminal state transitions",
		},
		[]string{"state", "origin"},
	)

	PaymentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Payments seeded after a successful provider charge",
		},
	)

	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Calls to the payment provider",
		},
		[]string{"op", "result"}, // create|status x ok|error|unavailable
	)

	StoreFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_failures_total",
			Help: "Operations that failed because the transaction store was unavailable",
		},
		[]string{"op"},
	)

	AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_alerts_total",
			Help: "Alerts raised for operators",
		},
		[]string{"kind"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_published_total",
			Help: "Transition events handed to the event publisher",
		},
		[]string{"result"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)

	initOnce sync.Once
)

// /metrics endpoint'i için handler
var Handler = promhttp.Handler

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(Observations)
		prometheus.MustRegister(Transitions)
		prometheus.MustRegister(PaymentsCreated)
		prometheus.MustRegister(ProviderRequests)
		prometheus.MustRegister(StoreFailures)
		prometheus.MustRegister(AlertsRaised)
		prometheus.MustRegister(EventsPublished)
		prometheus.MustRegister(HTTPLatency)
		prometheus.MustRegister(WorkerQueueDepth)
	})
}
