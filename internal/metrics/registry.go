// Package metrics exposes the wish protocol daemon's Prometheus
// instrumentation: per-stage counters, session gauges, and abuse
// control metrics, all registered under one namespace.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wishd"

// Registry is the process-wide collector registry every metric in
// this package registers against.
var Registry = prometheus.NewRegistry()

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer runs a standalone metrics HTTP server on addr.
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
