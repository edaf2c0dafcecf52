package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "glucoview", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "glucoview", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// UpstreamRequests counts calls to the remote glucose service by endpoint (login|graph) and outcome.
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "glucoview", Name: "upstream_requests_total", Help: "Remote API calls by endpoint and outcome."},
		[]string{"endpoint", "outcome"},
	)
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "glucoview", Name: "upstream_request_seconds", Help: "Remote API call latency.", Buckets: prometheus.DefBuckets},
		[]string{"endpoint"},
	)
	RefreshCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "glucoview", Name: "refresh_cycles_total", Help: "Refresh cycles by final state."},
		[]string{"state"},
	)
	SessionVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "glucoview", Name: "session_verdicts_total", Help: "Session gate verdicts."},
		[]string{"verdict"},
	)
)

// Known label values, seeded at registration so /metrics shows every series at zero
// before the first event.
var (
	limiters  = []string{"memory", "redis"}
	endpoints = []string{"login", "graph"}
	outcomes  = []string{"2xx", "4xx", "5xx", "network_error"}
	states    = []string{"ready", "failed", "session_invalid"}
	verdicts  = []string{"authenticated", "unauthenticated", "expired"}
)

func RegisterCollectors(reg prometheus.Registerer) {
	for _, l := range limiters {
		RateLimitAllowed.WithLabelValues(l)
		RateLimitRejected.WithLabelValues(l)
	}
	for _, e := range endpoints {
		UpstreamLatency.WithLabelValues(e)
		for _, o := range outcomes {
			UpstreamRequests.WithLabelValues(e, o)
		}
	}
	for _, st := range states {
		RefreshCycles.WithLabelValues(st)
	}
	for _, v := range verdicts {
		SessionVerdicts.WithLabelValues(v)
	}

	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(UpstreamRequests)
	reg.MustRegister(UpstreamLatency)
	reg.MustRegister(RefreshCycles)
	reg.MustRegister(SessionVerdicts)
}
