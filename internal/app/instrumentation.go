package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// HTTPMetrics measures the requests sent to the calendar and thermostat APIs.
type HTTPMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.SummaryVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calendar_hvac",
			Subsystem: "client",
			Name:      "http_requests_total",
			Help:      "total number of http requests",
		},
			[]string{"application", "code", "method"},
		),
		requestDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: "calendar_hvac",
			Subsystem: "client",
			Name:      "http_request_duration_seconds",
			Help:      "duration of http requests",
		},
			[]string{"application", "code", "method"},
		),
	}
}

// Client returns an HTTP client that records its requests under the application label.
func (m *HTTPMetrics) Client(application string) *http.Client {
	labels := prometheus.Labels{"application": application}
	return &http.Client{
		Transport: promhttp.InstrumentRoundTripperCounter(m.requestCounter.MustCurryWith(labels),
			promhttp.InstrumentRoundTripperDuration(m.requestDuration.MustCurryWith(labels),
				http.DefaultTransport,
			),
		),
	}
}

func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestCounter.Describe(ch)
	m.requestDuration.Describe(ch)
}

func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestCounter.Collect(ch)
	m.requestDuration.Collect(ch)
}
