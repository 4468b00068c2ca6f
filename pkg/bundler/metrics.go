package bundler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bundleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "opsctl_bundle_duration_seconds",
			Help:    "Duration of support bundle creation in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	bundleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsctl_bundle_total",
			Help: "Total number of support bundle runs",
		},
		[]string{"status"}, // success, partial or error
	)

	serviceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsctl_bundle_service_duration_seconds",
			Help:    "Duration of collecting one ops service in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"service", "status"}, // status: success or error
	)

	bundleFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsctl_bundle_files_total",
			Help: "Total number of files written into support bundles",
		},
		[]string{"service"},
	)
)
