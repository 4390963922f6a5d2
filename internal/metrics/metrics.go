// ABOUTME: Prometheus collectors for dispatch, reload, and upstream latency
// ABOUTME: Registered on the default registry and scraped via the gateway's metrics route

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchTotal counts submit dispatches by resulting status code.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dispatch_total",
			Help: "Total submit dispatches by status code",
		},
		[]string{"status"},
	)

	// ReloadTotal counts route-table refresh attempts by outcome.
	ReloadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_reload_total",
			Help: "Total route table reloads",
		},
		[]string{"outcome"}, // "ok", "load_error", "reload_error"
	)

	// RoutesActive tracks the size of the live routing table.
	RoutesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_routes_active",
			Help: "Routes in the currently active table",
		},
	)

	// UpstreamSeconds observes upstream call latency by API kind.
	UpstreamSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_upstream_seconds",
			Help:    "Upstream submit latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api"},
	)
)
