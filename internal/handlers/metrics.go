package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cadventory/internal/logging"
)

// metricsErrorLogger adapts logging to promhttp.Logger.
type metricsErrorLogger struct{}

func (metricsErrorLogger) Println(v ...interface{}) {
	logging.Warn("metrics: %v", v)
}

// MetricsHandler serves the default registry, negotiating OpenMetrics when
// the scraper asks for it.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:          metricsErrorLogger{},
		EnableOpenMetrics: true,
	})
}
