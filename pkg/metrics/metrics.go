// Package metrics exposes the Prometheus metrics of the Data Garden client.
// The metrics themselves are defined with promauto in the packages that
// update them (client, cache, pagination, regionaldata).
//
// Request Metrics (pkg/client):
//   - datagarden_requests_total{method, status} (Counter): requests by method and HTTP status
//   - datagarden_request_duration_seconds{method} (Histogram): request duration
//   - datagarden_errors_total{class} (Counter): errors by class (client, auth, server, network)
//
// Cache Metrics (pkg/cache):
//   - datagarden_cache_lookups_total{result} (Counter): hit, miss or stale lookups
//   - datagarden_cache_stored_bytes_total (Counter): bytes written to the cache
//   - datagarden_cache_cleared_entries_total (Counter): entries dropped by Clear
//   - datagarden_cache_errors_total{operation} (Counter): cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - datagarden_pages_fetched_total (Counter): pages fetched by all walks
//
// Regional Data Metrics (pkg/regionaldata):
//   - datagarden_regional_queries_total{result} (Counter): queries fetched, deduplicated or failed
//   - datagarden_records_resolved_total{model} (Counter): records resolved per model
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(datagarden_cache_lookups_total{result="hit"}[5m])) /
//	sum(rate(datagarden_cache_lookups_total[5m]))
//
//	# Query deduplication ratio
//	rate(datagarden_regional_queries_total{result="deduplicated"}[5m]) /
//	rate(datagarden_regional_queries_total[5m])
//
//	# P95 Request Latency
//	histogram_quantile(0.95, rate(datagarden_request_duration_seconds_bucket[5m]))
package metrics

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prefix is shared by all client metric names.
const Prefix = "datagarden_"

// Registry is the registerer all client metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Summary gathers g and returns the total of every counter whose name starts
// with prefix, summed over all label combinations.
func Summary(g prometheus.Gatherer, prefix string) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	totals := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				totals[mf.GetName()] += c.GetValue()
			}
		}
	}
	return totals, nil
}
