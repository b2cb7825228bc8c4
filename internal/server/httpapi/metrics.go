package httpapi

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsController struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	contentWrites *prometheus.CounterVec
	contentReads  *prometheus.CounterVec
}

func newMetricsController() *metricsController {
	reg := prometheus.NewRegistry()

	m := &metricsController{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedkeeper_http_requests_total",
			Help: "HTTP server's handled requests",
		}, []string{"code", "method"}),
		contentWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedkeeper_content_batch_writes_total",
			Help: "Batch uploads by outcome",
		}, []string{"outcome"}),
		contentReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedkeeper_content_batch_reads_total",
			Help: "Batch fetches by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.httpRequests, m.contentWrites, m.contentReads)

	return m
}

func (m *metricsController) MetricsHTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsController) observeRequest(code int, method string) {
	m.httpRequests.With(prometheus.Labels{
		"code":   strconv.Itoa(code),
		"method": method,
	}).Inc()
}
