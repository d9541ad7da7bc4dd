package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lookups counts cache lookups by result: hit, miss or stale.
	Lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datagarden_cache_lookups_total",
			Help: "Data Garden response cache lookups by result",
		},
		[]string{"result"},
	)

	// StoredBytes counts response body bytes written to Redis.
	StoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datagarden_cache_stored_bytes_total",
			Help: "Total bytes of Data Garden responses written to the cache",
		},
	)

	// Cleared counts entries dropped by Clear.
	Cleared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datagarden_cache_cleared_entries_total",
			Help: "Cached Data Garden responses removed by an explicit clear",
		},
	)

	// Errors counts failed Redis operations.
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datagarden_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "lookup", "store", "invalidate", "clear"
	)
)
