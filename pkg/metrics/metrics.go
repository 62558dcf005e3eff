package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "peoplebook", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "peoplebook", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "peoplebook", Name: "store_operations_total", Help: "Person store operations by operation and outcome."},
		[]string{"operation", "outcome"},
	)
	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "peoplebook", Name: "store_operation_seconds", Help: "Latency of person store operations.", Buckets: prometheus.DefBuckets},
		[]string{"operation"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "peoplebook", Name: "cache_lookups_total", Help: "Person cache lookups by result (hit|miss)."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(StoreOperations)
	reg.MustRegister(StoreLatency)
	reg.MustRegister(CacheLookups)
}
