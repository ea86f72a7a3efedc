package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the Prometheus registry the OTel exporter feeds.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
