package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tankfinder_searches_total",
		Help: "Station searches served, labeled by outcome.",
	}, []string{"outcome"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tankfinder_search_duration_seconds",
		Help:    "End-to-end station search latency.",
		Buckets: prometheus.DefBuckets,
	})

	geocodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tankfinder_geocode_requests_total",
		Help: "Geocoding lookups, labeled by outcome.",
	}, []string{"outcome"})
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)
