package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var apiCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "opsctl_discovery_api_calls_total",
		Help: "Total number of cluster API calls made during discovery",
	},
	[]string{"operation", "status"}, // status: success or error
)

func observeCall(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	apiCallsTotal.WithLabelValues(operation, status).Inc()
}
