package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "dispatch_total",
		Help:      "Movie API dispatches by kind (search/discover) and outcome.",
	}, []string{"kind", "status"})

	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviesearch",
		Name:      "dispatch_duration_seconds",
		Help:      "Movie API request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})

	StaleDispatchDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "stale_dispatch_discarded_total",
		Help:      "Dispatch results dropped because a newer dispatch was issued.",
	})

	StoreFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviesearch",
		Name:      "store_failures_total",
		Help:      "Rank store failures by operation. These never reach the search flow.",
	}, []string{"op"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moviesearch",
		Name:      "active_sessions",
		Help:      "Search pipelines currently held by the session registry.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		DispatchTotal,
		DispatchDuration,
		StaleDispatchDiscarded,
		StoreFailuresTotal,
		ActiveSessions,
	)
}
